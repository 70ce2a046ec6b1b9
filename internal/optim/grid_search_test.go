package optim

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestGridSearchFindsMinimum(t *testing.T) {
	g := NewGridSearch([]string{"x", "y"}, [][]float64{{-1, 0, 1, 2}, {-2, 3}})

	evals := 0
	best, val, err := g.Search(context.Background(), func(p map[string]float64) (float64, error) {
		evals++
		return (p["x"]-1)*(p["x"]-1) + (p["y"]-3)*(p["y"]-3), nil
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if evals != g.Size() || evals != 8 {
		t.Errorf("expected 8 evaluations, got %d", evals)
	}
	if best["x"] != 1 || best["y"] != 3 || val != 0 {
		t.Errorf("expected (1, 3) with value 0, got %v value %f", best, val)
	}

	if v := Vector(best, []string{"y", "x"}); v[0] != 3 || v[1] != 1 {
		t.Errorf("Vector ordered wrongly: %v", v)
	}
}

func TestGridSearchSkipsFailures(t *testing.T) {
	g := Uniform([]string{"x"}, []float64{0, 1, 2})
	best, _, err := g.Search(context.Background(), func(p map[string]float64) (float64, error) {
		switch p["x"] {
		case 0:
			return 0, errors.New("boom")
		case 1:
			return math.NaN(), nil
		}
		return 5, nil
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if best["x"] != 2 {
		t.Errorf("expected x=2, got %v", best)
	}
}

func TestGridSearchNoCandidate(t *testing.T) {
	g := Uniform([]string{"x"}, []float64{0, 1})
	_, _, err := g.Search(context.Background(), func(map[string]float64) (float64, error) {
		return 0, errors.New("boom")
	})
	if !errors.Is(err, ErrNoCandidate) {
		t.Errorf("expected ErrNoCandidate, got %v", err)
	}
}

func TestGridSearchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := Uniform([]string{"x"}, []float64{0, 1})
	_, _, err := g.Search(ctx, func(map[string]float64) (float64, error) { return 0, nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
