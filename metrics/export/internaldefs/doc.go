// Package internaldefs holds the metric name definitions shared by the
// exporter implementations, so the Prometheus and OTel exporters always
// render identical series names.
package internaldefs
