// Package metrics scores probabilistic forecasts against the true values
// they were made for.
package metrics

import (
	"github.com/san-kum/phylogam/internal/gam"
)

// Metric accumulates one score over a stream of Gaussian forecasts.
type Metric interface {
	Name() string
	Observe(mean, se, truth float64)
	Value() float64
	Reset()
}

// Default returns fresh instances of every forecast metric.
func Default() []Metric {
	return []Metric{
		NewCRPS(),
		NewRMSE(),
		NewCoverage(),
		NewIntervalWidth(),
	}
}

// Evaluate scores the predicted rows selected by keep with each metric
// and returns the values by name. A nil keep selects every row.
func Evaluate(rows []gam.PredictedRow, keep func(gam.PredictedRow) bool, ms ...Metric) map[string]float64 {
	if len(ms) == 0 {
		ms = Default()
	}
	for _, m := range ms {
		m.Reset()
	}
	for _, r := range rows {
		if keep != nil && !keep(r) {
			continue
		}
		for _, m := range ms {
			m.Observe(r.Mean, r.SE, r.Truth)
		}
	}
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
