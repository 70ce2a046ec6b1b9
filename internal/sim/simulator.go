package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/san-kum/phylogam/internal/gp"
	"github.com/san-kum/phylogam/internal/phylo"
)

// Config parameterizes one simulated dataset.
type Config struct {
	NumSpecies int
	NumTimes   int
	Holdout    int

	// WithheldCount species are chosen at random unless Withheld lists
	// explicit species indices.
	WithheldCount int
	Withheld      []int

	TrendAlpha, TrendRho float64
	WarpAlpha, WarpRho   float64
	TraitSigma           float64
	NoiseSD              float64

	Seed int64
}

func (c Config) Validate() error {
	switch {
	case c.NumSpecies < 3:
		return fmt.Errorf("%w: need at least 3 species, got %d", ErrInvalidConfig, c.NumSpecies)
	case c.NumTimes < 2:
		return fmt.Errorf("%w: need at least 2 time points, got %d", ErrInvalidConfig, c.NumTimes)
	case c.Holdout < 0 || c.Holdout >= c.NumTimes:
		return fmt.Errorf("%w: holdout %d outside [0, %d)", ErrInvalidConfig, c.Holdout, c.NumTimes)
	case c.NoiseSD < 0:
		return fmt.Errorf("%w: noise sd must be non-negative", ErrInvalidConfig)
	case c.TraitSigma <= 0:
		return fmt.Errorf("%w: trait sigma must be positive", ErrInvalidConfig)
	}

	count := c.WithheldCount
	if len(c.Withheld) > 0 {
		count = len(c.Withheld)
		seen := make(map[int]bool)
		for _, sp := range c.Withheld {
			if sp < 0 || sp >= c.NumSpecies || seen[sp] {
				return fmt.Errorf("%w: bad withheld species index %d", ErrInvalidConfig, sp)
			}
			seen[sp] = true
		}
	}
	if count < 0 || count > c.NumSpecies-2 {
		return fmt.Errorf("%w: cannot withhold %d of %d species", ErrInvalidConfig, count, c.NumSpecies)
	}
	return nil
}

// Simulator generates phylogenetically correlated series. All randomness
// comes from one seeded source, drawn in a fixed order.
type Simulator struct {
	cfg  Config
	rng  *rand.Rand
	tree *phylo.Tree
}

func New(cfg Config) *Simulator {
	return &Simulator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// WithTree fixes the tree instead of drawing a random one. The tree's leaf
// count overrides NumSpecies.
func (s *Simulator) WithTree(t *phylo.Tree) *Simulator {
	s.tree = t
	s.cfg.NumSpecies = t.NumLeaves()
	return s
}

func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	tree := s.tree
	if tree == nil {
		var err error
		tree, err = phylo.Random(s.rng, s.cfg.NumSpecies)
		if err != nil {
			return nil, err
		}
	}

	res := &Result{Tree: tree}
	for i := range res.Weights {
		res.Weights[i] = Series(phylo.BrownianTraits(s.rng, tree, s.cfg.TraitSigma)).Standardize()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := s.cfg.NumTimes
	baseline, err := gp.Sample(s.rng, n, s.cfg.TrendAlpha, s.cfg.TrendRho)
	if err != nil {
		return nil, fmt.Errorf("baseline trend: %w", err)
	}
	res.Baseline = baseline
	for i := range res.Warps {
		warp, err := gp.Sample(s.rng, n, s.cfg.WarpAlpha, s.cfg.WarpRho)
		if err != nil {
			return nil, fmt.Errorf("warp trend %d: %w", i+1, err)
		}
		res.Warps[i] = warp
	}

	res.Withheld = s.pickWithheld()
	withheld := make(map[int]bool, len(res.Withheld))
	for _, sp := range res.Withheld {
		withheld[sp] = true
	}

	data := NewDataset(tree.Labels(), n)
	for sp := range data.Species {
		truth := res.Baseline.
			AddScaled(res.Weights[0][sp], res.Warps[0]).
			AddScaled(res.Weights[1][sp], res.Warps[1]).
			Standardize()
		if !truth.IsValid() {
			return nil, fmt.Errorf("%w: non-finite truth for species %s", ErrInvariant, data.Species[sp])
		}

		for t := 0; t < n; t++ {
			row := &data.Rows[data.Index(sp, t+1)]
			row.Truth = truth[t]
			// noise is drawn for every cell so withholding never shifts the stream
			y := truth[t] + s.cfg.NoiseSD*s.rng.NormFloat64()

			switch {
			case withheld[sp]:
				row.Weight = 0
			case t+1 > n-s.cfg.Holdout:
			default:
				row.Y = y
			}
		}
	}

	if err := data.Validate(); err != nil {
		return nil, err
	}
	res.Data = data
	return res, nil
}

func (s *Simulator) pickWithheld() []int {
	var out []int
	if len(s.cfg.Withheld) > 0 {
		out = append(out, s.cfg.Withheld...)
	} else {
		out = append(out, s.rng.Perm(s.cfg.NumSpecies)[:s.cfg.WithheldCount]...)
	}
	sort.Ints(out)
	return out
}
