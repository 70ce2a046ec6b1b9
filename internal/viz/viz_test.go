package viz

import (
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/phylogam/internal/experiment"
	"github.com/san-kum/phylogam/internal/gam"
	"github.com/san-kum/phylogam/internal/sim"
)

func testRun() (*sim.Dataset, []*gam.Prediction) {
	data := sim.NewDataset([]string{"sp1", "sp2"}, 12)
	for i := range data.Rows {
		r := &data.Rows[i]
		r.Truth = math.Cos(float64(r.Time) / 2)
		if r.Species == "sp2" {
			r.Weight = 0
		} else if r.Time <= 10 {
			r.Y = r.Truth + 0.1
		}
	}
	p := &gam.Prediction{Model: "phylo"}
	for _, r := range data.Rows {
		p.Rows = append(p.Rows, gam.PredictedRow{Row: r, Mean: r.Truth, SE: 0.1, Lower: r.Truth - 0.2, Upper: r.Truth + 0.2})
	}
	return data, []*gam.Prediction{p}
}

func TestScoreTable(t *testing.T) {
	out := ScoreTable([]experiment.Score{
		{Model: "phylo", Subset: "withheld", Rows: 24, CRPS: 0.21, RMSE: 0.3, Coverage: 0.95, Width: 1.1},
		{Model: "baseline", Subset: "withheld", Rows: 24, CRPS: 0.35, RMSE: 0.5, Coverage: 0.9, Width: 1.2},
		{Model: "phylo", Subset: "forecast", CRPS: math.NaN(), RMSE: math.NaN(), Coverage: math.NaN(), Width: math.NaN()},
	})
	for _, want := range []string{"subset", "phylo", "baseline", "0.2100", "0.3500", "-"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in table:\n%s", want, out)
		}
	}
}

func TestFitTable(t *testing.T) {
	out := FitTable(map[string]*gam.Fit{
		"phylo": {LogLambdas: []float64{1.5, -2, 3}, Scale: 0.12, EDF: 40.2, Evaluations: 120},
	})
	if !strings.Contains(out, "1.50 -2.00 3.00") || !strings.Contains(out, "40.20") {
		t.Errorf("unexpected fit table:\n%s", out)
	}
}

func TestSpeciesPlot(t *testing.T) {
	data, preds := testRun()

	out, err := SpeciesPlot(data, preds, "sp2", DefaultPlotOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "sp2 (withheld)") {
		t.Errorf("expected withheld caption, got:\n%s", out)
	}

	if _, err := SpeciesPlot(data, preds, "nope", DefaultPlotOptions()); err == nil {
		t.Error("expected error for unknown species")
	}
}

func TestSparklineChart(t *testing.T) {
	if got := SparklineChart(nil, 5); got != "─────" {
		t.Errorf("expected flat line, got %q", got)
	}
	out := SparklineChart([]float64{0, math.NaN(), 1}, 3)
	if !strings.Contains(out, " ") {
		t.Errorf("expected a blank for NaN, got %q", out)
	}
}

func TestBrowserNavigation(t *testing.T) {
	data, preds := testRun()
	b := NewBrowser("run", data, preds)

	if b.Selected() != "sp1" {
		t.Fatalf("expected sp1, got %s", b.Selected())
	}
	b.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	if b.Selected() != "sp2" {
		t.Errorf("expected sp2 after j, got %s", b.Selected())
	}
	b.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	if b.Selected() != "sp2" {
		t.Errorf("cursor should stop at the last species, got %s", b.Selected())
	}
	b.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	if b.theme != 1 {
		t.Errorf("expected theme 1, got %d", b.theme)
	}

	view := b.View()
	if !strings.Contains(view, "phylo crps") {
		t.Errorf("expected per-species scores in view:\n%s", view)
	}

	_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("expected quit command")
	}
}
