// Package debug provides global debug logging flags
package debug

import "github.com/teslashibe/go-facesense/internal/log"

// Enabled controls whether debug logging is active
var Enabled bool

// Metrics controls whether per-tick metric logs are shown (EAR, MAR, pose).
// These fire on every frame; use --debug-metrics to enable them.
var Metrics bool

// Log logs a message only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Debug(msg, args...)
	}
}

// MetricLog logs a message only if metric debug mode is enabled
func MetricLog(msg string, args ...any) {
	if Metrics {
		log.Info(msg, args...)
	}
}
