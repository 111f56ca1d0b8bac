// Package metrics summarizes a deployment run from its control ticks.
package metrics

import "github.com/san-kum/e3deploy/internal/dynamo"

// DefaultStabilityThreshold is the tracking error, in mixed m/s and rad/s
// units, above which a tick counts as unstable.
const DefaultStabilityThreshold = 0.5

// Standard returns the metrics recorded for every run.
func Standard() []dynamo.Metric {
	return []dynamo.Metric{
		NewTrackingError(),
		NewControlEffort(),
		NewMaxDisturbance(),
		NewStability(DefaultStabilityThreshold),
	}
}

// Collect reads every metric into a name to value map.
func Collect(ms []dynamo.Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
