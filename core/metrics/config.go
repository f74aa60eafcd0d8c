package metrics

import "github.com/kilianp07/fieldassign/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort serves /metrics when non-empty, e.g. ":9100".
	PrometheusPort string `json:"prometheus_port"`
}
