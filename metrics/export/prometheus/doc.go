// Package prometheus exposes engine counters to Prometheus.
//
// [PrometheusExporter] is a prometheus.Collector over
// [onboardAuth.Engine.MetricsSnapshot], registered in its own registry. Counter
// names are prefixed onboardauth_ and end in _total; the single histogram is
// onboardauth_login_latency_seconds. Mount [PrometheusExporter.Handler] at
// /metrics; nothing is registered globally.
package prometheus
