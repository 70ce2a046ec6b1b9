package gam

import (
	"fmt"
	"math"

	"github.com/san-kum/phylogam/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// z95 is the standard normal quantile for a two-sided 95% interval.
const z95 = 1.96

// Fit is a fitted model. Coefficients follow the term order of the model.
type Fit struct {
	Model        string             `json:"model"`
	Coefficients []float64          `json:"coefficients"`
	Penalties    []string           `json:"penalties"`
	LogLambdas   []float64          `json:"log_lambdas"`
	Lambdas      []float64          `json:"lambdas"`
	Scale        float64            `json:"scale"`
	REML         float64            `json:"reml"`
	EDF          float64            `json:"edf"`
	TermEDF      map[string]float64 `json:"term_edf"`
	NumObs       int                `json:"num_obs"`
	Evaluations  int                `json:"evaluations"`
	Status       string             `json:"status"`

	terms   []Term
	offsets []int
	cov     *mat.SymDense
}

// Covariance returns the Bayesian posterior covariance of the coefficients.
func (f *Fit) Covariance() mat.Symmetric {
	return f.cov
}

type PredictedRow struct {
	sim.Row
	Mean  float64 `json:"mean"`
	SE    float64 `json:"se"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

type Prediction struct {
	Model string         `json:"model"`
	Rows  []PredictedRow `json:"rows"`
}

// Predict evaluates the posterior mean and standard error of the linear
// predictor for every row of data, observed or not.
func (f *Fit) Predict(data *sim.Dataset) (*Prediction, error) {
	p := len(f.Coefficients)
	x := make([]float64, p)
	nz := make([]int, 0, p)

	out := &Prediction{Model: f.Model, Rows: make([]PredictedRow, len(data.Rows))}
	for i, r := range data.Rows {
		for k, t := range f.terms {
			off := f.offsets[k]
			if err := t.Fill(r, x[off:off+t.Dim()]); err != nil {
				return nil, fmt.Errorf("predict row %d: %w", i, err)
			}
		}

		nz = nz[:0]
		mean := 0.0
		for j, v := range x {
			if v != 0 {
				nz = append(nz, j)
				mean += v * f.Coefficients[j]
			}
		}
		variance := 0.0
		for _, a := range nz {
			for _, b := range nz {
				variance += x[a] * f.cov.At(a, b) * x[b]
			}
		}
		se := math.Sqrt(math.Max(variance, 0))

		out.Rows[i] = PredictedRow{
			Row:   r,
			Mean:  mean,
			SE:    se,
			Lower: mean - z95*se,
			Upper: mean + z95*se,
		}
	}
	return out, nil
}

// ForSpecies returns the predicted rows of one species in time order.
func (p *Prediction) ForSpecies(species string) []PredictedRow {
	var rows []PredictedRow
	for _, r := range p.Rows {
		if r.Species == species {
			rows = append(rows, r)
		}
	}
	return rows
}

func (p *Prediction) Means() []float64 {
	out := make([]float64, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.Mean
	}
	return out
}
