// Package otel binds goToken engine metrics to an OpenTelemetry meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter
// and gauges for each latency bucket, the sample count and the sum. One
// callback reads [goToken.Engine.MetricsSnapshot] per collection cycle. The
// caller owns the MeterProvider.
package otel
