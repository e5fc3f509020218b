// Package prometheus renders eduAuth metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts an [eduAuth.Engine] and exposes an
// [http.Handler]. Counter names are prefixed eduauth_*_total; the single
// histogram is eduauth_validate_latency_seconds.
//
// Nothing is registered in a global Prometheus registry; callers mount the
// Handler themselves.
package prometheus
