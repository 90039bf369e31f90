// Package otel publishes engine counters through an OpenTelemetry meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter and
// an Int64ObservableGauge per latency bucket. One callback reads
// [onboardAuth.Engine.MetricsSnapshot] on each collection. Callers own the
// MeterProvider.
package otel
