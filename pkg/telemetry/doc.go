// Package telemetry wires OpenTelemetry tracing and the daemon's metrics.
//
// SetupProvider installs the process-wide tracer provider that association
// resync spans are recorded on. Metrics (Prometheus, served on /metrics) and
// OTelRecorder (OpenTelemetry instruments) both implement
// association.Recorder; Combine feeds one cache's events to both.
package telemetry
