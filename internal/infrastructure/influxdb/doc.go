// Package influxdb writes netpanel availability metrics to InfluxDB v2.
//
// The collector queues one point per status sample on the "availability"
// measurement (tags: endpoint, model; fields: success, latency_ms).
// Writes are batched and non-blocking; failures are reported through an
// error callback rather than blocking the poll loop.
//
// InfluxDB is optional; Connect returns ErrDisabled when turned off in
// configuration and the collector skips metric writes.
package influxdb
