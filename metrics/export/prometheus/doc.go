// Package prometheus renders the client counters in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts an [authkit.Client] and exposes an
// [http.Handler] for a /metrics endpoint. Counter names are prefixed
// authkit_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the
//     Handler.
//   - Mutate client state.
package prometheus
