package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/phylogam/internal/phylo"
)

func testConfig() Config {
	return Config{
		NumSpecies:    12,
		NumTimes:      50,
		Holdout:       5,
		WithheldCount: 2,
		TrendAlpha:    1, TrendRho: 12,
		WarpAlpha: 1, WarpRho: 6,
		TraitSigma: 1,
		NoiseSD:    0.35,
		Seed:       42,
	}
}

func TestSimulatorRun(t *testing.T) {
	res, err := New(testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	d := res.Data

	if len(d.Species) != 12 {
		t.Fatalf("expected 12 species, got %d", len(d.Species))
	}
	if len(d.Rows) != 12*50 {
		t.Fatalf("expected 600 rows, got %d", len(d.Rows))
	}
	if len(res.Withheld) != 2 {
		t.Fatalf("expected 2 withheld species, got %d", len(res.Withheld))
	}

	for sp := range d.Species {
		rows := d.SpeciesRows(sp)
		if len(rows) != 50 {
			t.Fatalf("species %d has %d rows", sp, len(rows))
		}
		for i, r := range rows {
			if r.Time != i+1 {
				t.Fatalf("species %d: time %d at position %d", sp, r.Time, i)
			}
		}
	}
}

func TestSimulatorWithheldSpeciesMissing(t *testing.T) {
	res, err := New(testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	d := res.Data

	unobserved := d.Unobserved()
	if len(unobserved) != len(res.Withheld) {
		t.Fatalf("expected %v unobserved, got %v", res.Withheld, unobserved)
	}
	for _, sp := range unobserved {
		for _, r := range d.SpeciesRows(sp) {
			if r.Weight != 0 {
				t.Errorf("species %s: weight %f", r.Species, r.Weight)
			}
			if !math.IsNaN(r.Y) {
				t.Errorf("species %s time %d: expected missing, got %f", r.Species, r.Time, r.Y)
			}
		}
	}
}

func TestSimulatorHoldoutMissing(t *testing.T) {
	cfg := testConfig()
	res, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, r := range res.Data.Rows {
		if r.Time > cfg.NumTimes-cfg.Holdout && !math.IsNaN(r.Y) {
			t.Errorf("%s at time %d should be held out", r.Species, r.Time)
		}
		if r.Weight > 0 && r.Time <= cfg.NumTimes-cfg.Holdout && math.IsNaN(r.Y) {
			t.Errorf("%s at time %d should be observed", r.Species, r.Time)
		}
	}
}

func TestSimulatorTruthStandardized(t *testing.T) {
	res, _ := New(testConfig()).Run(context.Background())
	d := res.Data
	for sp := range d.Species {
		truth := make(Series, 0, d.NumTimes())
		for _, r := range d.SpeciesRows(sp) {
			truth = append(truth, r.Truth)
		}
		std := truth.Standardize()
		for i := range truth {
			if math.Abs(std[i]-truth[i]) > 1e-9 {
				t.Fatalf("species %d truth is not standardized", sp)
			}
		}
	}
}

func TestSimulatorDeterministic(t *testing.T) {
	a, _ := New(testConfig()).Run(context.Background())
	b, _ := New(testConfig()).Run(context.Background())

	if a.Tree.Newick() != b.Tree.Newick() {
		t.Fatal("trees differ for the same seed")
	}
	for i := range a.Data.Rows {
		ra, rb := a.Data.Rows[i], b.Data.Rows[i]
		if ra.Truth != rb.Truth || (ra.Y != rb.Y && !(math.IsNaN(ra.Y) && math.IsNaN(rb.Y))) {
			t.Fatalf("row %d differs", i)
		}
	}

	cfg := testConfig()
	cfg.Seed = 43
	c, _ := New(cfg).Run(context.Background())
	if c.Data.Rows[0].Truth == a.Data.Rows[0].Truth {
		t.Error("different seeds produced the same truth")
	}
}

func TestSimulatorExplicitWithheld(t *testing.T) {
	cfg := testConfig()
	cfg.Withheld = []int{7, 1}
	res, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Withheld[0] != 1 || res.Withheld[1] != 7 {
		t.Errorf("expected withheld [1 7], got %v", res.Withheld)
	}
}

func TestSimulatorWithTree(t *testing.T) {
	tree, err := phylo.ParseNewick("((a:0.5,b:0.5):0.5,(c:0.2,(d:0.4,e:0.4):0.6):0.3);")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := testConfig()
	cfg.NumSpecies = 0
	cfg.WithheldCount = 1

	res, err := New(cfg).WithTree(tree).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := res.Data.Species; len(got) != 5 || got[0] != "a" || got[4] != "e" {
		t.Errorf("unexpected species %v", got)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"too few species", func(c *Config) { c.NumSpecies = 2 }},
		{"holdout too large", func(c *Config) { c.Holdout = 50 }},
		{"negative noise", func(c *Config) { c.NoiseSD = -1 }},
		{"withhold all", func(c *Config) { c.WithheldCount = 11 }},
		{"bad index", func(c *Config) { c.Withheld = []int{12} }},
		{"duplicate index", func(c *Config) { c.Withheld = []int{3, 3} }},
		{"zero trait sigma", func(c *Config) { c.TraitSigma = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg).Run(context.Background())
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSimulatorBadKernel(t *testing.T) {
	cfg := testConfig()
	cfg.TrendRho = 0
	if _, err := New(cfg).Run(context.Background()); err == nil {
		t.Error("expected error for zero length-scale")
	}
}

func TestSimulatorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(testConfig()).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
