package instrumentation

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	ServiceName    string `env:"OTEL_SERVICE_NAME" envDefault:"calconnect"`
	ServiceVersion string
	// ServiceInstanceID defaults to the hostname when empty.
	ServiceInstanceID string `env:"OTEL_SERVICE_INSTANCE_ID"`

	Enabled bool `env:"INSTRUMENTATION_ENABLED" envDefault:"true"`

	// MetricsExporter is one of prometheus, otlp, stdout.
	MetricsExporter string `env:"METRICS_EXPORTER" envDefault:"prometheus"`
	// TracingExporter is one of otlp, stdout, none.
	TracingExporter string `env:"TRACING_EXPORTER" envDefault:"none"`

	// OTLPEndpoint is host:port without scheme.
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure disables TLS towards the collector. Development only.
	OTLPInsecure bool `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`

	TraceSamplingRate float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"0.1"`

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	Enabled bool `env:"AUDIT_LOGGING_ENABLED" envDefault:"true"`
	// IncludePII logs raw user identifiers instead of hashes.
	IncludePII bool `env:"AUDIT_LOGGING_INCLUDE_PII" envDefault:"false"`
}

// LoadConfig reads Config from the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse instrumentation env: %w", err)
	}
	cfg.ServiceVersion = "unknown"
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if (c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP) && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using an OTLP exporter")
	}
	return nil
}

// Label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	ResultSuccess = "success"
	ResultFailure = "failure"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// Provider API operations.
const (
	OperationListCalendars = "list_calendars"
	OperationTokenExchange = "token_exchange"
	OperationTokenRefresh  = "token_refresh"
)
