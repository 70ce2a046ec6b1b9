package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/phylogam/internal/config"
	"github.com/san-kum/phylogam/internal/gam"
	"github.com/san-kum/phylogam/internal/metrics"
	"github.com/san-kum/phylogam/internal/phylo"
	"github.com/san-kum/phylogam/internal/sim"
)

// Evaluation subsets.
const (
	SubsetWithheld = "withheld"
	SubsetForecast = "forecast"
	SubsetAll      = "all"
)

var Subsets = []string{SubsetWithheld, SubsetForecast, SubsetAll}

// Score holds one model's metrics over one subset of rows.
type Score struct {
	Model    string  `json:"model"`
	Subset   string  `json:"subset"`
	Rows     int     `json:"rows"`
	CRPS     float64 `json:"crps"`
	RMSE     float64 `json:"rmse"`
	Coverage float64 `json:"coverage"`
	Width    float64 `json:"width"`
}

type Result struct {
	Config      *config.Config
	Sim         *sim.Result
	Models      []string
	Fits        map[string]*gam.Fit
	Predictions map[string]*gam.Prediction
	Scores      []Score
	Elapsed     time.Duration
}

type Experiment struct {
	cfg      *config.Config
	registry *Registry
	logger   *slog.Logger
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   slog.Default(),
	}
}

func (e *Experiment) WithRegistry(r *Registry) *Experiment {
	e.registry = r
	return e
}

func (e *Experiment) WithLogger(l *slog.Logger) *Experiment {
	e.logger = l
	return e
}

// Run simulates a dataset, fits every configured model and scores each
// on every subset.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	s := sim.New(e.cfg.Simulation())
	if e.cfg.TreeFile != "" {
		tree, err := phylo.LoadNewick(e.cfg.TreeFile)
		if err != nil {
			return nil, err
		}
		s.WithTree(tree)
	}
	simRes, err := s.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	e.logger.Debug("simulated",
		"species", len(simRes.Data.Species),
		"times", simRes.Data.NumTimes(),
		"observed", len(simRes.Data.Observed()),
		"withheld", simRes.Withheld,
	)

	res := &Result{
		Config:      e.cfg,
		Sim:         simRes,
		Models:      append([]string(nil), e.cfg.Fit.Models...),
		Fits:        make(map[string]*gam.Fit),
		Predictions: make(map[string]*gam.Prediction),
	}

	for _, name := range res.Models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		model, err := e.registry.GetModel(name, simRes.Data, simRes.Tree, e.cfg.Fit)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		model.Options.Logger = e.logger

		fit, err := model.Fit(ctx, simRes.Data)
		if err != nil {
			return nil, err
		}
		pred, err := fit.Predict(simRes.Data)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		res.Fits[name] = fit
		res.Predictions[name] = pred

		for _, subset := range Subsets {
			res.Scores = append(res.Scores, score(name, subset, pred, simRes.Data))
		}
		e.logger.Debug("scored", "model", name, "crps_withheld", res.Score(name, SubsetWithheld).CRPS)
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

func subsetFilter(subset string, data *sim.Dataset) func(gam.PredictedRow) bool {
	horizon := firstMissingTime(data)
	switch subset {
	case SubsetWithheld:
		withheld := make(map[string]bool)
		for _, sp := range data.Unobserved() {
			withheld[data.Species[sp]] = true
		}
		return func(r gam.PredictedRow) bool { return withheld[r.Species] }
	case SubsetForecast:
		return func(r gam.PredictedRow) bool { return r.Weight > 0 && r.Time >= horizon }
	default:
		return nil
	}
}

// firstMissingTime is the first time at which no observed species has a
// value, i.e. the start of the forecast horizon.
func firstMissingTime(data *sim.Dataset) int {
	last := 0
	for _, r := range data.Rows {
		if r.Observed() && r.Time > last {
			last = r.Time
		}
	}
	return last + 1
}

func score(model, subset string, pred *gam.Prediction, data *sim.Dataset) Score {
	keep := subsetFilter(subset, data)
	n := 0
	for _, r := range pred.Rows {
		if keep == nil || keep(r) {
			n++
		}
	}
	v := metrics.Evaluate(pred.Rows, keep)
	return Score{
		Model:    model,
		Subset:   subset,
		Rows:     n,
		CRPS:     v["crps"],
		RMSE:     v["rmse"],
		Coverage: v["coverage"],
		Width:    v["width"],
	}
}

// Score returns the score of model on subset, with a NaN CRPS when absent.
func (r *Result) Score(model, subset string) Score {
	for _, s := range r.Scores {
		if s.Model == model && s.Subset == subset {
			return s
		}
	}
	return Score{Model: model, Subset: subset, CRPS: math.NaN()}
}

// Winner returns the model with the lowest CRPS on subset, or "" when no
// model has rows there.
func (r *Result) Winner(subset string) string {
	best, winner := math.Inf(1), ""
	for _, m := range r.Models {
		if c := r.Score(m, subset).CRPS; !math.IsNaN(c) && c < best {
			best, winner = c, m
		}
	}
	return winner
}
