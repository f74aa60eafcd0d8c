// Package metrics defines the contracts used to record assignment outcomes.
// Sinks like the Prometheus and InfluxDB sinks in infra/metrics record one
// AssignmentRecord per placed call and can be combined with NewMultiSink.
// NewMetricsSink builds sinks from configuration and returns a MultiSink
// automatically when several are configured.
package metrics
