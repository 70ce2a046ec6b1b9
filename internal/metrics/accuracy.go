package metrics

import (
	"math"
)

// z95 matches the interval reported with each prediction.
const z95 = 1.96

type RMSE struct {
	name    string
	sumSq   float64
	samples int
}

func NewRMSE() *RMSE {
	return &RMSE{name: "rmse"}
}

func (r *RMSE) Name() string { return r.name }

func (r *RMSE) Observe(mean, se, truth float64) {
	d := mean - truth
	r.sumSq += d * d
	r.samples++
}

func (r *RMSE) Value() float64 {
	if r.samples == 0 {
		return math.NaN()
	}
	return math.Sqrt(r.sumSq / float64(r.samples))
}

func (r *RMSE) Reset() {
	r.sumSq = 0
	r.samples = 0
}

// Coverage is the fraction of truths inside mean ± 1.96 se.
type Coverage struct {
	name    string
	hits    int
	samples int
}

func NewCoverage() *Coverage {
	return &Coverage{name: "coverage"}
}

func (c *Coverage) Name() string { return c.name }

func (c *Coverage) Observe(mean, se, truth float64) {
	c.samples++
	if math.Abs(truth-mean) <= z95*se {
		c.hits++
	}
}

func (c *Coverage) Value() float64 {
	if c.samples == 0 {
		return math.NaN()
	}
	return float64(c.hits) / float64(c.samples)
}

func (c *Coverage) Reset() {
	c.hits = 0
	c.samples = 0
}

// IntervalWidth is the mean width of the 95% interval.
type IntervalWidth struct {
	name    string
	sum     float64
	samples int
}

func NewIntervalWidth() *IntervalWidth {
	return &IntervalWidth{name: "width"}
}

func (w *IntervalWidth) Name() string { return w.name }

func (w *IntervalWidth) Observe(mean, se, truth float64) {
	w.sum += 2 * z95 * se
	w.samples++
}

func (w *IntervalWidth) Value() float64 {
	if w.samples == 0 {
		return math.NaN()
	}
	return w.sum / float64(w.samples)
}

func (w *IntervalWidth) Reset() {
	w.sum = 0
	w.samples = 0
}
