package gam

import (
	"fmt"
	"math"

	"github.com/san-kum/phylogam/internal/basis"
	"github.com/san-kum/phylogam/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// eigTol clamps penalty eigenvalues below eigTol*max to zero.
const eigTol = 1e-10

// Penalty is one quadratic penalty over a term's coefficients.
type Penalty struct {
	Name string
	S    *mat.SymDense
}

// Term is one additive component of a model.
type Term interface {
	Label() string
	Dim() int

	// Fill writes the design row for r into dst, which has length Dim.
	Fill(r sim.Row, dst []float64) error

	Penalties() []Penalty

	// NullSpaceDim is the number of unpenalized directions when every
	// smoothing parameter is positive.
	NullSpaceDim() int

	// LogDet returns log of the pseudo-determinant of the weighted penalty
	// sum, with one lambda per penalty.
	LogDet(lambdas []float64) float64
}

// Smooth is a cubic B-spline in time with an order-th difference penalty.
type Smooth struct {
	label   string
	basis   *basis.BSpline
	penalty *mat.SymDense
	rank    int
	logDet0 float64
}

// NewSmooth builds s(time) with k basis functions over [lo, hi].
func NewSmooth(lo, hi float64, k, order int) (*Smooth, error) {
	b, err := basis.NewBSpline(lo, hi, k, 3)
	if err != nil {
		return nil, err
	}
	if order < 1 || order >= k {
		return nil, fmt.Errorf("gam: difference order %d invalid for %d basis functions", order, k)
	}

	s := &Smooth{
		label:   "s(time)",
		basis:   b,
		penalty: basis.DifferencePenalty(k, order),
	}
	vals, ok := basis.Eigenvalues(s.penalty, eigTol)
	if !ok {
		return nil, fmt.Errorf("gam: eigen decomposition of %s penalty failed", s.label)
	}
	for _, v := range vals {
		if v > 0 {
			s.rank++
			s.logDet0 += math.Log(v)
		}
	}
	return s, nil
}

func (s *Smooth) Label() string { return s.label }
func (s *Smooth) Dim() int      { return s.basis.Dim() }

func (s *Smooth) Fill(r sim.Row, dst []float64) error {
	s.basis.Eval(float64(r.Time), dst)
	return nil
}

func (s *Smooth) Penalties() []Penalty {
	return []Penalty{{Name: s.label, S: s.penalty}}
}

func (s *Smooth) NullSpaceDim() int { return s.Dim() - s.rank }

func (s *Smooth) LogDet(lambdas []float64) float64 {
	return float64(s.rank)*math.Log(lambdas[0]) + s.logDet0
}

// TensorMRF has one coefficient per (time level, species) cell, indexed
// time-major. Its penalties are lambda_t (R ⊗ I) and lambda_s (I ⊗ P) for
// a time penalty R and a species penalty P.
type TensorMRF struct {
	label   string
	levels  map[string]int
	species map[string]int
	nt, ns  int

	penalties []Penalty
	timeEig   []float64
	spEig     []float64
	nullDim   int
}

func NewTensorMRF(timeLevels []string, timePenalty *mat.SymDense, species []string, speciesPenalty *mat.SymDense) (*TensorMRF, error) {
	nt, ns := len(timeLevels), len(species)
	if r, _ := timePenalty.Dims(); r != nt {
		return nil, fmt.Errorf("%w: time penalty %d for %d levels", ErrPenaltyShape, r, nt)
	}
	if r, _ := speciesPenalty.Dims(); r != ns {
		return nil, fmt.Errorf("%w: species penalty %d for %d species", ErrPenaltyShape, r, ns)
	}

	t := &TensorMRF{
		label:   "te(time_factor,species)",
		levels:  make(map[string]int, nt),
		species: make(map[string]int, ns),
		nt:      nt,
		ns:      ns,
	}
	for i, l := range timeLevels {
		if _, dup := t.levels[l]; dup {
			return nil, fmt.Errorf("%w: time level %q", ErrDuplicateLevel, l)
		}
		t.levels[l] = i
	}
	for i, s := range species {
		if _, dup := t.species[s]; dup {
			return nil, fmt.Errorf("%w: species %q", ErrDuplicateLevel, s)
		}
		t.species[s] = i
	}

	t.penalties = []Penalty{
		{Name: t.label + ":time", S: basis.Kron(timePenalty, basis.Identity(ns))},
		{Name: t.label + ":species", S: basis.Kron(basis.Identity(nt), speciesPenalty)},
	}

	var ok bool
	if t.timeEig, ok = basis.Eigenvalues(timePenalty, eigTol); !ok {
		return nil, fmt.Errorf("gam: eigen decomposition of time penalty failed")
	}
	if t.spEig, ok = basis.Eigenvalues(speciesPenalty, eigTol); !ok {
		return nil, fmt.Errorf("gam: eigen decomposition of species penalty failed")
	}
	for _, r := range t.timeEig {
		for _, p := range t.spEig {
			if r == 0 && p == 0 {
				t.nullDim++
			}
		}
	}
	return t, nil
}

func (t *TensorMRF) Label() string { return t.label }
func (t *TensorMRF) Dim() int      { return t.nt * t.ns }

func (t *TensorMRF) Fill(r sim.Row, dst []float64) error {
	for i := range dst {
		dst[i] = 0
	}
	lvl, ok := t.levels[r.TimeFactor]
	if !ok {
		return fmt.Errorf("%w: time level %q", ErrUnknownLevel, r.TimeFactor)
	}
	sp, ok := t.species[r.Species]
	if !ok {
		return fmt.Errorf("%w: species %q", ErrUnknownLevel, r.Species)
	}
	dst[lvl*t.ns+sp] = 1
	return nil
}

func (t *TensorMRF) Penalties() []Penalty { return t.penalties }

func (t *TensorMRF) NullSpaceDim() int { return t.nullDim }

// LogDet uses the eigenvalues of the Kronecker sum, lambda_t*r_i + lambda_s*p_j.
func (t *TensorMRF) LogDet(lambdas []float64) float64 {
	sum := 0.0
	for _, r := range t.timeEig {
		for _, p := range t.spEig {
			if v := lambdas[0]*r + lambdas[1]*p; v > 0 {
				sum += math.Log(v)
			}
		}
	}
	return sum
}
