package metrics

import (
	"github.com/san-kum/odesim/internal/dynamo"
)

// Metric is a step handler that reduces an integration run to one number.
type Metric interface {
	dynamo.StepHandler
	Name() string
	Value() float64
}

// Values collects the current value of every metric by name.
func Values(ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
