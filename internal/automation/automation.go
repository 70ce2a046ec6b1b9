package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/san-kum/phylogam/internal/config"
	"github.com/san-kum/phylogam/internal/experiment"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted batch of experiments
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep runs one config over several seeds. When Param is set the
// step is repeated for every value in Values.
type ScenarioStep struct {
	Name   string    `yaml:"name"`
	Preset string    `yaml:"preset"`
	Config string    `yaml:"config"`
	Seeds  []int64   `yaml:"seeds"`
	Param  string    `yaml:"param"`
	Values []float64 `yaml:"values"`
}

// StepResult aggregates one config over its seeds.
type StepResult struct {
	Name     string               `json:"name"`
	Param    string               `json:"param,omitempty"`
	Value    float64              `json:"value,omitempty"`
	Seeds    []int64              `json:"seeds"`
	Subset   string               `json:"subset"`
	MeanCRPS map[string]float64   `json:"mean_crps"`
	Wins     map[string]int       `json:"wins"`
	PerSeed  []map[string]float64 `json:"per_seed"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}

	return &scenario, nil
}

var setters = map[string]func(*config.Config, float64){
	"noise_sd":    func(c *config.Config, v float64) { c.NoiseSD = v },
	"trait_sigma": func(c *config.Config, v float64) { c.TraitSigma = v },
	"trend_rho":   func(c *config.Config, v float64) { c.Trend.Rho = v },
	"warp_rho":    func(c *config.Config, v float64) { c.Warp.Rho = v },
	"warp_alpha":  func(c *config.Config, v float64) { c.Warp.Alpha = v },
	"species":     func(c *config.Config, v float64) { c.Species = int(v) },
	"times":       func(c *config.Config, v float64) { c.Times = int(v) },
	"withheld":    func(c *config.Config, v float64) { c.Withheld = int(v) },
	"holdout":     func(c *config.Config, v float64) { c.Holdout = int(v) },
}

// SweepParams lists the config fields a step can sweep.
func SweepParams() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s ScenarioStep) baseConfig() (*config.Config, error) {
	switch {
	case s.Config != "":
		return config.Load(s.Config)
	case s.Preset != "":
		cfg := config.GetPreset(s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", s.Preset)
		}
		return cfg, nil
	default:
		return config.DefaultConfig(), nil
	}
}

// RunScenario executes all steps in a scenario
func RunScenario(ctx context.Context, scenario *Scenario, logger *slog.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var results []StepResult

	for i, step := range scenario.Steps {
		logger.Info("running step", "step", i+1, "of", len(scenario.Steps), "name", step.Name)

		base, err := step.baseConfig()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		if step.Param == "" {
			r, err := Compare(ctx, base, step.Seeds, logger)
			if err != nil {
				return results, fmt.Errorf("step %d: %w", i+1, err)
			}
			r.Name = step.Name
			results = append(results, *r)
			continue
		}

		set, ok := setters[step.Param]
		if !ok {
			return results, fmt.Errorf("step %d: unknown sweep parameter %q", i+1, step.Param)
		}
		for _, v := range step.Values {
			cfg := base.Clone()
			set(cfg, v)
			r, err := Compare(ctx, cfg, step.Seeds, logger)
			if err != nil {
				return results, fmt.Errorf("step %d %s=%g: %w", i+1, step.Param, v, err)
			}
			r.Name, r.Param, r.Value = step.Name, step.Param, v
			results = append(results, *r)
		}
	}

	return results, nil
}

// Compare runs cfg once per seed and averages each model's CRPS on the
// withheld species. An empty seed list runs cfg.Seed alone.
func Compare(ctx context.Context, cfg *config.Config, seeds []int64, logger *slog.Logger) (*StepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(seeds) == 0 {
		seeds = []int64{cfg.Seed}
	}

	crps := make(map[string][]float64)
	out := &StepResult{
		Seeds:    seeds,
		MeanCRPS: make(map[string]float64),
		Wins:     make(map[string]int),
		Subset:   experiment.SubsetWithheld,
	}
	for _, seed := range seeds {
		c := cfg.Clone()
		c.Seed = seed
		res, err := experiment.New(c).WithLogger(logger).Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", seed, err)
		}

		row := make(map[string]float64, len(res.Models))
		for _, m := range res.Models {
			v := res.Score(m, out.Subset).CRPS
			crps[m] = append(crps[m], v)
			row[m] = v
		}
		out.PerSeed = append(out.PerSeed, row)
		if w := res.Winner(out.Subset); w != "" {
			out.Wins[w]++
		}
		logger.Debug("seed done", "seed", seed, "crps", row)
	}

	for m, vs := range crps {
		out.MeanCRPS[m] = floats.Sum(vs) / float64(len(vs))
	}
	return out, nil
}
