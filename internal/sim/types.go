package sim

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/san-kum/phylogam/internal/phylo"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInvalidConfig indicates simulation parameters outside valid bounds.
	ErrInvalidConfig = errors.New("sim: invalid configuration")

	// ErrInvariant indicates a dataset that breaks the observation table layout.
	ErrInvariant = errors.New("sim: dataset invariant violated")
)

// Series is one value per time point.
type Series []float64

func (s Series) Clone() Series {
	c := make(Series, len(s))
	copy(c, s)
	return c
}

func (s Series) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// AddScaled returns s + f*other.
func (s Series) AddScaled(f float64, other Series) Series {
	out := s.Clone()
	for i := range out {
		if i < len(other) {
			out[i] += f * other[i]
		}
	}
	return out
}

// Standardize returns (s - mean) / sd using the sample standard deviation.
// A constant series is only centred.
func (s Series) Standardize() Series {
	mean, sd := stat.MeanStdDev(s, nil)
	out := make(Series, len(s))
	for i, v := range s {
		out[i] = v - mean
		if sd > 0 {
			out[i] /= sd
		}
	}
	return out
}

// Row is one (species, time) cell of the observation table. Y is NaN when
// the observation is withheld.
type Row struct {
	Species    string  `json:"species"`
	Weight     float64 `json:"weight"`
	Time       int     `json:"time"`
	TimeFactor string  `json:"time_factor"`
	Truth      float64 `json:"truth"`
	Y          float64 `json:"y"`
}

// Observed reports whether the row carries a usable observation.
func (r Row) Observed() bool { return !math.IsNaN(r.Y) && r.Weight > 0 }

// Missing is the value stored in Y for withheld observations.
func Missing() float64 { return math.NaN() }

// Dataset is the observation table. Species and TimeLevels list every
// factor level, including levels that carry no observation.
type Dataset struct {
	Species    []string
	TimeLevels []string
	Rows       []Row
}

// NewDataset lays out an empty table, species-major, for the given labels
// and times 1..numTimes.
func NewDataset(species []string, numTimes int) *Dataset {
	d := &Dataset{
		Species:    append([]string(nil), species...),
		TimeLevels: make([]string, numTimes),
		Rows:       make([]Row, 0, len(species)*numTimes),
	}
	for t := range d.TimeLevels {
		d.TimeLevels[t] = strconv.Itoa(t + 1)
	}
	for _, sp := range species {
		for t := 0; t < numTimes; t++ {
			d.Rows = append(d.Rows, Row{
				Species:    sp,
				Weight:     1,
				Time:       t + 1,
				TimeFactor: d.TimeLevels[t],
				Y:          Missing(),
			})
		}
	}
	return d
}

func (d *Dataset) NumTimes() int { return len(d.TimeLevels) }

// Index returns the row position of (species index, time).
func (d *Dataset) Index(species, time int) int {
	return species*d.NumTimes() + time - 1
}

// SpeciesRows returns the rows of species sp in time order.
func (d *Dataset) SpeciesRows(sp int) []Row {
	n := d.NumTimes()
	return d.Rows[sp*n : (sp+1)*n]
}

// Observed returns the rows that enter a model fit.
func (d *Dataset) Observed() []Row {
	out := make([]Row, 0, len(d.Rows))
	for _, r := range d.Rows {
		if r.Observed() {
			out = append(out, r)
		}
	}
	return out
}

// Unobserved returns the indices of species with zero inclusion weight.
func (d *Dataset) Unobserved() []int {
	var out []int
	for sp := range d.Species {
		if d.SpeciesRows(sp)[0].Weight == 0 {
			out = append(out, sp)
		}
	}
	return out
}

// Validate checks the table layout: every species has exactly one row per
// time 1..T in order, and zero-weight species carry no observations.
func (d *Dataset) Validate() error {
	n := d.NumTimes()
	if len(d.Rows) != len(d.Species)*n {
		return fmt.Errorf("%w: %d rows for %d species x %d times", ErrInvariant, len(d.Rows), len(d.Species), n)
	}
	seen := make(map[string]bool, len(d.Species))
	for sp, name := range d.Species {
		if seen[name] {
			return fmt.Errorf("%w: duplicate species %s", ErrInvariant, name)
		}
		seen[name] = true
		for t, r := range d.SpeciesRows(sp) {
			if r.Species != name || r.Time != t+1 || r.TimeFactor != d.TimeLevels[t] {
				return fmt.Errorf("%w: row for %s at position %d is (%s, %d)", ErrInvariant, name, t+1, r.Species, r.Time)
			}
			if r.Weight == 0 && !math.IsNaN(r.Y) {
				return fmt.Errorf("%w: zero-weight species %s has an observation at time %d", ErrInvariant, name, r.Time)
			}
		}
	}
	return nil
}

// Result is the output of one simulation.
type Result struct {
	Tree     *phylo.Tree
	Weights  [2]Series
	Baseline Series
	Warps    [2]Series
	Withheld []int
	Data     *Dataset
}
