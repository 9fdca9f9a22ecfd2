// Package metrics keeps the server's in-process counters and gauges and
// exposes them in the Prometheus text format at /metrics.
package metrics
