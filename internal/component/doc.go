// Package component is the live component model the protocol operates on.
//
// A Component (storage system, meter, controller, scheduler) exposes
// Channels addressed as "componentId/channelId". Read channels carry
// measurements fed in by device drivers over MQTT (MQTTFeed); configuration
// channels accept writes and are persisted to a YAML document (FileStore).
//
// Each component class declares its capability tags statically, so clients
// can discover what a component does without inspecting it. The Registry
// resolves addresses, creates and removes controllers at runtime, keeps
// every Scheduler in sync, and renders the configuration snapshot sent to
// clients after login.
//
// Ids starting with "_" are reserved for components the core manages
// itself, such as the manual power controller (_manualPQ) and the
// software metadata component (_meta).
package component
