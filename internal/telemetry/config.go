package telemetry

// Config controls the OpenTelemetry tracer wired into the NFS and MOUNT
// dispatchers.
type Config struct {
	// Enabled turns tracing on. When false, Tracer() hands back a
	// no-op tracer and Init is a cheap no-op.
	Enabled bool

	// ServiceName identifies this process to the trace backend.
	ServiceName string

	// ServiceVersion is reported alongside ServiceName.
	ServiceVersion string

	// Endpoint is the OTLP/gRPC collector address, e.g. "localhost:4317".
	Endpoint string

	// Insecure disables TLS on the OTLP connection.
	Insecure bool

	// SampleRate is the trace sampling ratio: 1.0 samples everything,
	// 0.0 disables sampling entirely, anything between is ratio-based.
	SampleRate float64
}

// DefaultConfig returns the off-by-default configuration a fresh
// install starts with.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "dittofs",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
