// Package metrics defines interfaces for recording dispatch observability
// data. Sinks like the Prometheus and InfluxDB adapters under infra/metrics
// record assignments, transitions and connection counts, and can be
// combined with NewMultiSink. The factory helpers return a MultiSink
// automatically when multiple sinks are configured.
package metrics
