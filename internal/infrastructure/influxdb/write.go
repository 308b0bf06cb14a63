package influxdb

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// WritePoint queues one measurement point for batched, non-blocking
// write. Errors surface asynchronously via the SetOnError callback.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if measurement == "" {
		return ErrInvalidPoint
	}
	if len(fields) == 0 {
		return ErrInvalidPoint
	}

	point := influxdb2.NewPoint(measurement, tags, fields, ts)
	c.writeAPI.WritePoint(point)
	return nil
}

// Flush forces all pending writes out. Safe after Close (no-op).
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
