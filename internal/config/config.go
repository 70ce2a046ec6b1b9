package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/san-kum/phylogam/internal/sim"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSpecies    = 12
	DefaultTimes      = 50
	DefaultHoldout    = 5
	DefaultWithheld   = 2
	DefaultNoiseSD    = 0.35
	DefaultTrendRho   = 12.0
	DefaultWarpRho    = 6.0
	DefaultTraitSigma = 1.0
	DefaultBasis      = 10
	DefaultMaxEvals   = 1000
)

// ErrInvalid indicates a config that cannot drive an experiment.
var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Seed            int64       `yaml:"seed"`
	Species         int         `yaml:"species"`
	Times           int         `yaml:"times"`
	Holdout         int         `yaml:"holdout"`
	Withheld        int         `yaml:"withheld"`
	WithheldSpecies []int       `yaml:"withheld_species,omitempty"`
	NoiseSD         float64     `yaml:"noise_sd"`
	Trend           TrendConfig `yaml:"trend"`
	Warp            TrendConfig `yaml:"warp"`
	TraitSigma      float64     `yaml:"trait_sigma"`
	TreeFile        string      `yaml:"tree_file,omitempty"`
	Fit             FitConfig   `yaml:"fit"`
}

// TrendConfig parameterizes a squared-exponential GP trend.
type TrendConfig struct {
	Alpha float64 `yaml:"alpha"`
	Rho   float64 `yaml:"rho"`
}

type FitConfig struct {
	Basis          int       `yaml:"basis"`
	Grid           []float64 `yaml:"grid"`
	MaxEvaluations int       `yaml:"max_evaluations"`
	Models         []string  `yaml:"models"`
}

func DefaultConfig() *Config {
	return &Config{
		Seed:       1,
		Species:    DefaultSpecies,
		Times:      DefaultTimes,
		Holdout:    DefaultHoldout,
		Withheld:   DefaultWithheld,
		NoiseSD:    DefaultNoiseSD,
		Trend:      TrendConfig{Alpha: 1, Rho: DefaultTrendRho},
		Warp:       TrendConfig{Alpha: 1, Rho: DefaultWarpRho},
		TraitSigma: DefaultTraitSigma,
		Fit: FitConfig{
			Basis:          DefaultBasis,
			Grid:           []float64{-2, 2, 6},
			MaxEvaluations: DefaultMaxEvals,
			Models:         []string{"phylo", "baseline"},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy so presets are never mutated by callers.
func (c *Config) Clone() *Config {
	out := *c
	out.WithheldSpecies = append([]int(nil), c.WithheldSpecies...)
	out.Fit.Grid = append([]float64(nil), c.Fit.Grid...)
	out.Fit.Models = append([]string(nil), c.Fit.Models...)
	return &out
}

// Simulation maps the config onto simulator parameters.
func (c *Config) Simulation() sim.Config {
	return sim.Config{
		NumSpecies:    c.Species,
		NumTimes:      c.Times,
		Holdout:       c.Holdout,
		WithheldCount: c.Withheld,
		Withheld:      append([]int(nil), c.WithheldSpecies...),
		TrendAlpha:    c.Trend.Alpha,
		TrendRho:      c.Trend.Rho,
		WarpAlpha:     c.Warp.Alpha,
		WarpRho:       c.Warp.Rho,
		TraitSigma:    c.TraitSigma,
		NoiseSD:       c.NoiseSD,
		Seed:          c.Seed,
	}
}

func (c *Config) Validate() error {
	if c.TreeFile == "" {
		if err := c.Simulation().Validate(); err != nil {
			return err
		}
	}
	switch {
	case c.Trend.Rho <= 0 || c.Warp.Rho <= 0:
		return fmt.Errorf("%w: trend length scales must be positive", ErrInvalid)
	case c.Trend.Alpha < 0 || c.Warp.Alpha < 0:
		return fmt.Errorf("%w: trend amplitudes must be non-negative", ErrInvalid)
	case c.Fit.Basis < 4:
		return fmt.Errorf("%w: need at least 4 basis functions, got %d", ErrInvalid, c.Fit.Basis)
	case len(c.Fit.Grid) == 0:
		return fmt.Errorf("%w: empty smoothing parameter grid", ErrInvalid)
	case c.Fit.MaxEvaluations <= 0:
		return fmt.Errorf("%w: max evaluations must be positive", ErrInvalid)
	case len(c.Fit.Models) == 0:
		return fmt.Errorf("%w: no models to fit", ErrInvalid)
	}
	return nil
}
