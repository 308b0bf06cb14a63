// Package collector polls the router on a fixed interval and records the
// outcome of each poll.
//
// Every cycle issues one authenticated read per configured endpoint
// through the router client — so deduplication, adaptive deadlines and
// timeout retries all apply — and persists a history sample. Samples
// optionally fan out to MQTT (for home-automation consumers) and to
// InfluxDB (for availability dashboards).
package collector
