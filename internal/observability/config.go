package observability

import (
	"strings"

	"github.com/smallbiznis/floorquote/internal/config"
	"github.com/smallbiznis/floorquote/internal/observability/logger"
	"github.com/smallbiznis/floorquote/internal/observability/metrics"
	"github.com/smallbiznis/floorquote/internal/observability/tracing"
)

// Config is the observability view of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Telemetry   config.TelemetryConfig
}

func LoadConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "floorquote"
	}
	return Config{
		ServiceName: name,
		Environment: cfg.Environment,
		Version:     cfg.AppVersion,
		Telemetry:   cfg.Telemetry,
	}
}

// Debug reports whether verbose diagnostics should be emitted.
func (c Config) Debug() bool {
	if c.Telemetry.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func (c Config) logger() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.Telemetry.LogLevel,
		Format:              c.Telemetry.LogFormat,
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.Telemetry.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.Telemetry.OtelEndpoint,
		ExporterProtocol: c.Telemetry.OtelProtocol,
		SamplingRatio:    c.Telemetry.SamplingRatio,
	}
}

func (c Config) metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.Telemetry.OtelEnabled,
		ExporterEndpoint: c.Telemetry.OtelEndpoint,
		ExporterProtocol: c.Telemetry.OtelProtocol,
		ServiceName:      c.ServiceName,
	}
}
