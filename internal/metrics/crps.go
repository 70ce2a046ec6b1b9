package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// GaussianCRPS is the continuous ranked probability score of a normal
// forecast N(mean, sd^2) at x. It reduces to |x - mean| when sd is zero.
func GaussianCRPS(mean, sd, x float64) float64 {
	if sd <= 0 {
		return math.Abs(x - mean)
	}
	z := (x - mean) / sd
	return sd * (z*(2*distuv.UnitNormal.CDF(z)-1) + 2*distuv.UnitNormal.Prob(z) - 1/math.Sqrt(math.Pi))
}

// CRPS is the mean Gaussian CRPS; lower is better.
type CRPS struct {
	name    string
	sum     float64
	samples int
}

func NewCRPS() *CRPS {
	return &CRPS{name: "crps"}
}

func (c *CRPS) Name() string { return c.name }

func (c *CRPS) Observe(mean, se, truth float64) {
	c.sum += GaussianCRPS(mean, se, truth)
	c.samples++
}

func (c *CRPS) Value() float64 {
	if c.samples == 0 {
		return math.NaN()
	}
	return c.sum / float64(c.samples)
}

func (c *CRPS) Reset() {
	c.sum = 0
	c.samples = 0
}
