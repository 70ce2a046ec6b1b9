package automation

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/phylogam/internal/config"
	"github.com/san-kum/phylogam/internal/logging"
)

func quietLogger() *slog.Logger {
	return logging.New(slog.LevelError, io.Discard)
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, `
name: noise
description: noise sweep
steps:
  - name: base
    preset: small
    seeds: [1, 2]
  - name: sweep
    preset: small
    param: noise_sd
    values: [0.1, 0.5]
`)
	s, err := LoadScenario(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "noise" || len(s.Steps) != 2 {
		t.Fatalf("unexpected scenario %+v", s)
	}
	if len(s.Steps[0].Seeds) != 2 || s.Steps[1].Param != "noise_sd" {
		t.Errorf("unexpected steps %+v", s.Steps)
	}
}

func TestLoadScenarioEmpty(t *testing.T) {
	path := writeScenario(t, "name: empty\n")
	if _, err := LoadScenario(path); err == nil {
		t.Error("expected error for scenario without steps")
	}
}

func TestRunScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("fits models")
	}
	s := &Scenario{
		Name: "test",
		Steps: []ScenarioStep{
			{Name: "base", Preset: "small", Seeds: []int64{1, 2}},
			{Name: "sweep", Preset: "small", Seeds: []int64{3}, Param: "noise_sd", Values: []float64{0.1, 0.6}},
		},
	}

	results, err := RunScenario(context.Background(), s, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	base := results[0]
	if len(base.PerSeed) != 2 {
		t.Errorf("expected 2 seeds, got %d", len(base.PerSeed))
	}
	wins := 0
	for _, n := range base.Wins {
		wins += n
	}
	if wins != 2 {
		t.Errorf("expected one winner per seed, got %v", base.Wins)
	}
	for _, m := range []string{"phylo", "baseline"} {
		if base.MeanCRPS[m] <= 0 {
			t.Errorf("model %s: expected positive mean crps, got %f", m, base.MeanCRPS[m])
		}
	}

	if results[1].Value != 0.1 || results[2].Value != 0.6 || results[2].Param != "noise_sd" {
		t.Errorf("unexpected sweep results %+v %+v", results[1], results[2])
	}
}

func TestRunScenarioErrors(t *testing.T) {
	tests := []struct {
		step ScenarioStep
		msg  string
	}{
		{ScenarioStep{Preset: "missing"}, "unknown preset"},
		{ScenarioStep{Preset: "small", Param: "gravity", Values: []float64{1}}, "unknown sweep parameter"},
	}
	for _, tt := range tests {
		_, err := RunScenario(context.Background(), &Scenario{Steps: []ScenarioStep{tt.step}}, quietLogger())
		if err == nil || !strings.Contains(err.Error(), tt.msg) {
			t.Errorf("expected error containing %q, got %v", tt.msg, err)
		}
	}
}

func TestCompareDefaultsToConfigSeed(t *testing.T) {
	if testing.Short() {
		t.Skip("fits models")
	}
	cfg := config.GetPreset("small")
	cfg.Seed = 11
	r, err := Compare(context.Background(), cfg, nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Seeds) != 1 || r.Seeds[0] != 11 {
		t.Errorf("expected seed 11, got %v", r.Seeds)
	}
}

func TestSweepParams(t *testing.T) {
	params := SweepParams()
	if len(params) != len(setters) {
		t.Fatalf("expected %d params, got %d", len(setters), len(params))
	}
	cfg := config.DefaultConfig()
	setters["withheld"](cfg, 3)
	if cfg.Withheld != 3 {
		t.Errorf("expected withheld 3, got %d", cfg.Withheld)
	}
}
