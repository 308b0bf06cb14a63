// Package history stores the status samples recorded by the collector.
//
// Each sample is one poll of a router API endpoint: whether it succeeded,
// the error code when it didn't, the observed latency, and the raw result
// payload. The dashboard API reads recent samples and the latest sample
// per endpoint from here.
package history
