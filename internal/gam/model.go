package gam

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/phylogam/internal/optim"
	"github.com/san-kum/phylogam/internal/sim"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// failedScore stands in for the criterion where the penalized system
// cannot be factored.
const failedScore = 1e100

type Options struct {
	// Grid is the set of log smoothing parameters tried for every
	// penalty before Nelder-Mead refinement.
	Grid []float64

	MinLogLambda float64
	MaxLogLambda float64

	MaxEvaluations int
	Tolerance      float64

	Logger *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		Grid:           []float64{-2, 2, 6},
		MinLogLambda:   -12,
		MaxLogLambda:   18,
		MaxEvaluations: 1000,
		Tolerance:      1e-6,
	}
}

type Model struct {
	Name    string
	Terms   []Term
	Options Options
}

func NewModel(name string, terms ...Term) *Model {
	return &Model{Name: name, Terms: terms, Options: DefaultOptions()}
}

func (m *Model) logger() *slog.Logger {
	if m.Options.Logger != nil {
		return m.Options.Logger
	}
	return slog.Default()
}

// Fit estimates coefficients and smoothing parameters from the observed
// rows of data.
func (m *Model) Fit(ctx context.Context, data *sim.Dataset) (*Fit, error) {
	rows := data.Observed()
	if len(rows) == 0 {
		return nil, &FitError{Model: m.Name, Wrapped: ErrNoData}
	}
	d, err := assemble(m.Terms, rows)
	if err != nil {
		return nil, &FitError{Model: m.Name, Wrapped: err}
	}
	if d.n <= d.nullDim {
		return nil, &FitError{Model: m.Name, Wrapped: fmt.Errorf("%w: %d rows", ErrNoData, d.n)}
	}

	opts := m.Options
	evals := 0
	criterion := func(rho []float64) float64 {
		evals++
		s, err := d.solve(m.Terms, m.lambdas(rho))
		if err != nil {
			return failedScore
		}
		return s.reml
	}

	grid := optim.Uniform(d.names, opts.Grid)
	start, _, err := grid.Search(ctx, func(p map[string]float64) (float64, error) {
		return criterion(optim.Vector(p, d.names)), nil
	})
	if err != nil {
		return nil, &FitError{Model: m.Name, Wrapped: err}
	}

	problem := optimize.Problem{Func: criterion}
	settings := &optimize.Settings{
		FuncEvaluations: opts.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.Tolerance,
			Iterations: 25,
		},
	}
	res, err := optimize.Minimize(problem, optim.Vector(start, d.names), settings, &optimize.NelderMead{SimplexSize: 1})
	if res == nil {
		return nil, &FitError{Model: m.Name, Status: optimize.Failure, Wrapped: err}
	}
	switch res.Status {
	case optimize.FunctionEvaluationLimit, optimize.IterationLimit, optimize.RuntimeLimit:
		return nil, &FitError{Model: m.Name, Status: res.Status, Wrapped: ErrNotConverged}
	}
	if err != nil {
		return nil, &FitError{Model: m.Name, Status: res.Status, Wrapped: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rho := m.clamp(res.X)
	best, err := d.solve(m.Terms, m.lambdas(rho))
	if err != nil {
		return nil, &FitError{Model: m.Name, Status: res.Status, Wrapped: err}
	}

	fit, err := m.summarize(d, best, rho)
	if err != nil {
		return nil, &FitError{Model: m.Name, Status: res.Status, Wrapped: err}
	}
	fit.Evaluations = evals
	fit.Status = res.Status.String()

	m.logger().Debug("gam fit",
		"model", m.Name,
		"n", fit.NumObs,
		"reml", fit.REML,
		"scale", fit.Scale,
		"edf", fit.EDF,
		"log_lambda", fit.LogLambdas,
		"evaluations", evals,
	)
	return fit, nil
}

func (m *Model) clamp(rho []float64) []float64 {
	out := make([]float64, len(rho))
	for i, v := range rho {
		out[i] = math.Max(m.Options.MinLogLambda, math.Min(m.Options.MaxLogLambda, v))
	}
	return out
}

func (m *Model) lambdas(rho []float64) []float64 {
	c := m.clamp(rho)
	for i := range c {
		c[i] = math.Exp(c[i])
	}
	return c
}

func (m *Model) summarize(d *design, s *solution, rho []float64) (*Fit, error) {
	var ainv mat.SymDense
	if err := s.chol.InverseTo(&ainv); err != nil {
		return nil, err
	}

	fit := &Fit{
		Model:        m.Name,
		Coefficients: append([]float64(nil), s.beta.RawVector().Data...),
		Penalties:    append([]string(nil), d.names...),
		LogLambdas:   rho,
		Lambdas:      s.lambdas,
		Scale:        d.scale(s),
		REML:         s.reml,
		NumObs:       d.n,
		TermEDF:      make(map[string]float64, len(m.Terms)),
		terms:        m.Terms,
		offsets:      d.offsets,
	}

	// edf is the trace of (X'WX + S)^-1 X'WX, split by term
	for k, t := range m.Terms {
		edf := 0.0
		for i := d.offsets[k]; i < d.offsets[k]+t.Dim(); i++ {
			for j := 0; j < d.p; j++ {
				edf += ainv.At(i, j) * d.xtwx.At(j, i)
			}
		}
		fit.TermEDF[t.Label()] = edf
		fit.EDF += edf
	}

	fit.cov = mat.NewSymDense(d.p, nil)
	fit.cov.ScaleSym(fit.Scale, &ainv)
	return fit, nil
}
