package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/phylogam/internal/gam"
	"github.com/san-kum/phylogam/internal/sim"
)

type PlotOptions struct {
	Width  int
	Height int
	Bands  bool
	Theme  Theme
}

func DefaultPlotOptions() PlotOptions {
	return PlotOptions{Width: 70, Height: 12, Theme: ThemeMinimal}
}

// SpeciesPlot draws truth, observations and every model's mean for one
// species. With Bands set, each model's 95% bounds are added.
func SpeciesPlot(data *sim.Dataset, preds []*gam.Prediction, species string, opts PlotOptions) (string, error) {
	sp := -1
	for i, name := range data.Species {
		if name == species {
			sp = i
		}
	}
	if sp < 0 {
		return "", fmt.Errorf("unknown species: %s", species)
	}

	rows := data.SpeciesRows(sp)
	truth := make([]float64, len(rows))
	obs := make([]float64, len(rows))
	observed := 0
	for i, r := range rows {
		truth[i] = r.Truth
		obs[i] = math.NaN()
		if r.Observed() {
			obs[i] = r.Y
			observed++
		}
	}

	series := [][]float64{truth}
	colors := []asciigraph.AnsiColor{opts.Theme.Truth}
	legends := []string{"truth"}
	if observed > 0 {
		series = append(series, obs)
		colors = append(colors, opts.Theme.Obs)
		legends = append(legends, "y")
	}

	for i, p := range preds {
		prs := p.ForSpecies(species)
		mean := make([]float64, len(prs))
		lower := make([]float64, len(prs))
		upper := make([]float64, len(prs))
		for j, r := range prs {
			mean[j], lower[j], upper[j] = r.Mean, r.Lower, r.Upper
		}
		c := opts.Theme.modelColor(i)
		series = append(series, mean)
		colors = append(colors, c)
		legends = append(legends, p.Model)
		if opts.Bands {
			series = append(series, lower, upper)
			colors = append(colors, c, c)
			legends = append(legends, p.Model+" lo", p.Model+" hi")
		}
	}

	caption := species
	if rows[0].Weight == 0 {
		caption += " (withheld)"
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(legends...),
	), nil
}
