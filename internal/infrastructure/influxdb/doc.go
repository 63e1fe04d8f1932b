// Package influxdb is the time-series write path for edge telemetry.
//
// Edges push timestampedData notifications mapping a timestamp to channel
// values. WriteTimestampedData turns each timestamp bucket into one point in
// the "data" measurement, tagged with the edge id, with one field per
// channel address:
//
//	data,edge=edge0 ess0/Soc=42,meter0/ActivePower=1830 1760000000000000000
//
// Writes are batched and non-blocking. Pass an onError callback to Connect
// to log failures.
package influxdb
