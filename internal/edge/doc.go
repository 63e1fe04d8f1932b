// Package edge holds the metadata the core keeps about each connected edge
// controller: its last configuration document, state of charge, IPv4
// address, software version and the time of its last power reading.
//
// Edges are provisioned out of band. The core only looks them up and
// advances their fields from notifications sent by the edge's own
// authenticated connection. Setters update memory immediately; the
// Registry writes dirty edges back to SQLite on an interval (write-behind)
// and announces each flushed state as a retained MQTT message.
package edge
