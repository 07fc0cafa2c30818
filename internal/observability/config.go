package observability

import (
	"resumeguard/internal/config"
)

// GetObservabilityConfig creates observability config from provided config
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	if cfg == nil {
		return ObservabilityConfig{
			ServiceName:    "resumeguard",
			ServiceVersion: version,
			Enabled:        true,
			ConsoleOutput:  true,
			PrettyPrint:    true,
			SampleRate:     1.0,
			Prometheus:     GetPrometheusConfig(cfg),
		}
	}

	obsConfig := cfg.Observability

	// Use app version if service version not specified
	serviceVersion := obsConfig.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	sampleRate := obsConfig.SampleRate
	if obsConfig.Tracing.SampleRate > 0 {
		sampleRate = obsConfig.Tracing.SampleRate
	}
	if !obsConfig.Tracing.Enabled {
		sampleRate = 0
	}

	prom := GetPrometheusConfig(cfg)
	prom.Enabled = prom.Enabled && obsConfig.Metrics.Enabled

	return ObservabilityConfig{
		ServiceName:     obsConfig.ServiceName,
		ServiceVersion:  serviceVersion,
		ServiceInstance: obsConfig.ServiceInstance,
		Enabled:         obsConfig.Enabled,
		ConsoleOutput:   obsConfig.ConsoleOutput || obsConfig.Console.Enabled,
		PrettyPrint:     obsConfig.Console.PrettyPrint,
		SampleRate:      sampleRate,
		Prometheus:      prom,
	}
}
