// Package tracing wraps OpenTelemetry so that scheduler operations can open
// spans without importing the upstream packages directly. Until Init or
// InitWithExporter is called every span is a no-op.
package tracing
