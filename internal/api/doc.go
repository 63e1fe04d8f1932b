// Package api implements the WebSocket session server for EdgeLink Core.
//
// Edges and UI clients each hold one persistent WebSocket connection. Every
// inbound frame is a JSON object (text frame) or a CBOR map (binary frame);
// replies use the encoding of the most recent inbound frame.
//
// # Message flow
//
// A frame is handled in this order:
//
//  1. "authenticate": credentials (username and password, password alone,
//     or a token) are checked and the resulting session is bound to the
//     connection. The reply carries the token and the configuration
//     snapshot of the default device.
//  2. The session is re-validated. A connection without a valid session is
//     closed.
//  3. A frame carrying "method" is an edge notification (edgeConfiguration
//     or timestampedData) and is applied to the edge bound to the session.
//  4. Otherwise "devices.<default>" is dispatched: subscribe, then the
//     config operation list, then manualPQ.
//
// Failures after authentication are reported as
// {"notification":{"severity":"ERROR","message":...}} and leave the
// connection open.
//
// # Live values
//
// After the first successful authentication a subscription worker polls
// the subscribed channels every websocket.subscription_interval_ms and
// pushes {"currentData":{...}} containing only values that changed since
// the previous push. The session is re-validated on every poll; once it is
// rejected the connection is closed.
package api
