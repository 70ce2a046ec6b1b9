package config

import "sort"

var Presets = map[string]*Config{
	"small": {
		Seed: 1, Species: 6, Times: 20, Holdout: 3, Withheld: 2, NoiseSD: DefaultNoiseSD,
		Trend: TrendConfig{Alpha: 1, Rho: 6}, Warp: TrendConfig{Alpha: 1, Rho: 3},
		TraitSigma: 1,
		Fit:        FitConfig{Basis: 6, Grid: []float64{-2, 2, 6}, MaxEvaluations: 600, Models: []string{"phylo", "baseline"}},
	},
	"tutorial": {
		Seed: 1, Species: DefaultSpecies, Times: DefaultTimes, Holdout: DefaultHoldout, Withheld: DefaultWithheld,
		NoiseSD: DefaultNoiseSD,
		Trend:   TrendConfig{Alpha: 1, Rho: DefaultTrendRho}, Warp: TrendConfig{Alpha: 1, Rho: DefaultWarpRho},
		TraitSigma: DefaultTraitSigma,
		Fit:        FitConfig{Basis: DefaultBasis, Grid: []float64{-2, 2, 6}, MaxEvaluations: DefaultMaxEvals, Models: []string{"phylo", "baseline"}},
	},
	"dense": {
		Seed: 1, Species: 20, Times: 60, Holdout: 5, Withheld: 3, NoiseSD: 0.2,
		Trend: TrendConfig{Alpha: 1, Rho: 15}, Warp: TrendConfig{Alpha: 1, Rho: 8},
		TraitSigma: 1,
		Fit:        FitConfig{Basis: 12, Grid: []float64{-2, 2, 6}, MaxEvaluations: 1500, Models: []string{"phylo", "baseline"}},
	},
	"sparse": {
		Seed: 1, Species: 10, Times: 30, Holdout: 8, Withheld: 4, NoiseSD: 0.6,
		Trend: TrendConfig{Alpha: 1, Rho: 10}, Warp: TrendConfig{Alpha: 1, Rho: 5},
		TraitSigma: 1,
		Fit:        FitConfig{Basis: 8, Grid: []float64{-2, 2, 6}, MaxEvaluations: DefaultMaxEvals, Models: []string{"phylo", "baseline"}},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
