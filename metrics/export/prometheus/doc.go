// Package prometheus exposes goToken engine metrics as a Prometheus collector.
//
// [NewPrometheusExporter] wraps an [goToken.Engine]. The exporter can be
// registered with an existing registry, or mounted directly through
// [PrometheusExporter.Handler]. Counters are named gotoken_*_total; the
// single histogram is gotoken_authenticate_latency_seconds.
package prometheus
