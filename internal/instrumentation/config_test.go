package instrumentation

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.ServiceName != "calconnect" {
		t.Errorf("ServiceName = %q, want calconnect", cfg.ServiceName)
	}
	if !cfg.Enabled {
		t.Error("instrumentation should default to enabled")
	}
	if cfg.TraceSamplingRate != 0.1 {
		t.Errorf("TraceSamplingRate = %v, want 0.1", cfg.TraceSamplingRate)
	}
	if !cfg.AuditLogging.Enabled || cfg.AuditLogging.IncludePII {
		t.Errorf("unexpected audit defaults: %+v", cfg.AuditLogging)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("METRICS_EXPORTER", "otlp")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Enabled {
		t.Error("expected disabled")
	}
	if cfg.MetricsExporter != ExporterOTLP || cfg.OTLPEndpoint != "collector:4318" {
		t.Errorf("unexpected exporter config: %+v", cfg)
	}
	if cfg.TraceSamplingRate != 0.5 {
		t.Errorf("TraceSamplingRate = %v", cfg.TraceSamplingRate)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone, TraceSamplingRate: 0.1}},
		{name: "bad rate", cfg: Config{TraceSamplingRate: 1.5}, wantErr: true},
		{name: "bad metrics exporter", cfg: Config{MetricsExporter: "x"}, wantErr: true},
		{name: "bad tracing exporter", cfg: Config{TracingExporter: "x"}, wantErr: true},
		{name: "otlp without endpoint", cfg: Config{TracingExporter: ExporterOTLP}, wantErr: true},
		{name: "otlp with endpoint", cfg: Config{TracingExporter: ExporterOTLP, OTLPEndpoint: "c:4318"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
