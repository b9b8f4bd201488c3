package tracing

// Config defines configuration options for OpenTelemetry tracing.
type Config struct {
	// Disable installs a no-op tracer provider.
	Disable bool `yaml:"disable"`

	// ExporterHost is the OTLP gRPC collector host.
	ExporterHost string `yaml:"exporter_host" validate:"required_if=Disable false"`

	// ExporterPort is the OTLP gRPC collector port. Default is 4317.
	ExporterPort int `yaml:"exporter_port" default:"4317"`

	// SampleRate is the fraction of root traces that are recorded. Default is 1.
	SampleRate float64 `yaml:"sample_rate" validate:"gte=0,lte=1" default:"1"`

	// Tags are added to every span as resource attributes.
	Tags map[string]string `yaml:"tags"`
}
