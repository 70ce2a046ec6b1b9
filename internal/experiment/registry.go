package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/phylogam/internal/basis"
	"github.com/san-kum/phylogam/internal/config"
	"github.com/san-kum/phylogam/internal/gam"
	"github.com/san-kum/phylogam/internal/phylo"
	"github.com/san-kum/phylogam/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// ModelFactory builds an unfitted model for one simulated dataset.
type ModelFactory func(data *sim.Dataset, tree *phylo.Tree, fc config.FitConfig) (*gam.Model, error)

type Registry struct {
	models map[string]ModelFactory
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]ModelFactory)}

	r.models["phylo"] = func(data *sim.Dataset, tree *phylo.Tree, fc config.FitConfig) (*gam.Model, error) {
		labels := tree.Labels()
		if len(labels) != len(data.Species) {
			return nil, fmt.Errorf("tree has %d leaves, dataset %d species", len(labels), len(data.Species))
		}
		for i, l := range labels {
			if l != data.Species[i] {
				return nil, fmt.Errorf("tree leaf %d is %q, dataset species is %q", i, l, data.Species[i])
			}
		}
		prec, err := tree.Precision()
		if err != nil {
			return nil, err
		}
		return buildModel("phylo", data, prec, fc)
	}
	r.models["baseline"] = func(data *sim.Dataset, _ *phylo.Tree, fc config.FitConfig) (*gam.Model, error) {
		return buildModel("baseline", data, basis.Identity(len(data.Species)), fc)
	}

	return r
}

// buildModel assembles y ~ s(time) + te(time_factor, species) with the
// given species penalty.
func buildModel(name string, data *sim.Dataset, speciesPenalty *mat.SymDense, fc config.FitConfig) (*gam.Model, error) {
	k := fc.Basis
	if k > data.NumTimes() {
		k = data.NumTimes()
	}
	smooth, err := gam.NewSmooth(1, float64(data.NumTimes()), k, 2)
	if err != nil {
		return nil, err
	}
	timePenalty := basis.MRF(basis.Chain(data.NumTimes()))
	te, err := gam.NewTensorMRF(data.TimeLevels, timePenalty, data.Species, speciesPenalty)
	if err != nil {
		return nil, err
	}

	m := gam.NewModel(name, smooth, te)
	if len(fc.Grid) > 0 {
		m.Options.Grid = append([]float64(nil), fc.Grid...)
	}
	if fc.MaxEvaluations > 0 {
		m.Options.MaxEvaluations = fc.MaxEvaluations
	}
	return m, nil
}

func (r *Registry) GetModel(name string, data *sim.Dataset, tree *phylo.Tree, fc config.FitConfig) (*gam.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(data, tree, fc)
}

// Register adds or replaces a model factory.
func (r *Registry) Register(name string, fn ModelFactory) {
	r.models[name] = fn
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
