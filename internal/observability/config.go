package observability

import (
	"interviewroom/internal/config"
)

// GetObservabilityConfig derives the manager settings from cfg. A nil cfg
// yields a disabled manager named after the CLI.
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	oc := ObservabilityConfig{
		ServiceName:    "interviewroom",
		ServiceVersion: version,
		PrettyPrint:    true,
		SampleRate:     1.0,
		Prometheus:     GetPrometheusConfig(cfg),
	}
	if cfg == nil {
		return oc
	}

	o := cfg.Observability
	if o.ServiceName != "" {
		oc.ServiceName = o.ServiceName
	}
	if o.ServiceVersion != "" {
		oc.ServiceVersion = o.ServiceVersion
	}
	oc.Enabled = o.Enabled
	oc.ConsoleOutput = o.ConsoleOutput || o.Console.Enabled
	oc.PrettyPrint = o.Console.PrettyPrint
	oc.SampleRate = o.SampleRate
	return oc
}
