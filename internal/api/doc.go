// Package api serves the HTTP surface of a running flow: health, Prometheus
// metrics, the diagnostics snapshot, property access and control toggles.
package api
