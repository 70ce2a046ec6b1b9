package export

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/san-kum/phylogam/internal/gam"
	"github.com/san-kum/phylogam/internal/sim"
)

// Palette assigns model colours in order.
var Palette = []string{"#1f77b4", "#d62728", "#2ca02c", "#9467bd"}

type FigureOptions struct {
	Columns     int
	PanelWidth  int
	PanelHeight int
}

func DefaultFigureOptions() FigureOptions {
	return FigureOptions{Columns: 4, PanelWidth: 260, PanelHeight: 170}
}

const (
	legendHeight = 30
	panelMargin  = 24
)

type bounds struct {
	minX, maxX, minY, maxY float64
}

func (b *bounds) add(x, y float64) {
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return
	}
	b.minX, b.maxX = math.Min(b.minX, x), math.Max(b.maxX, x)
	b.minY, b.maxY = math.Min(b.minY, y), math.Max(b.maxY, y)
}

// pad widens the y range by 10% and guards against zero ranges.
func (b *bounds) pad() {
	if b.maxX <= b.minX {
		b.maxX = b.minX + 1
	}
	rangeY := b.maxY - b.minY
	if rangeY <= 0 {
		rangeY = 1
	}
	b.minY -= rangeY * 0.1
	b.maxY += rangeY * 0.1
}

type panel struct {
	x0, y0, w, h float64
	b            bounds
}

func (p panel) px(x float64) float64 {
	return p.x0 + (x-p.b.minX)/(p.b.maxX-p.b.minX)*p.w
}

func (p panel) py(y float64) float64 {
	return p.y0 + p.h - (y-p.b.minY)/(p.b.maxY-p.b.minY)*p.h
}

func (p panel) path(xs, ys []float64) string {
	var sb strings.Builder
	for i := range xs {
		if i == 0 {
			sb.WriteString(fmt.Sprintf("M%.1f,%.1f", p.px(xs[i]), p.py(ys[i])))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", p.px(xs[i]), p.py(ys[i])))
		}
	}
	return sb.String()
}

// FigureSVG draws one panel per species: the true trend, the observed
// points, and each model's mean with its 95% band. The forecast horizon
// is shaded.
func FigureSVG(data *sim.Dataset, preds []*gam.Prediction, opts FigureOptions) string {
	if opts.Columns <= 0 {
		opts = DefaultFigureOptions()
	}
	ns := len(data.Species)
	if ns == 0 {
		return ""
	}
	cols := opts.Columns
	if ns < cols {
		cols = ns
	}
	rows := (ns + cols - 1) / cols
	cellW, cellH := opts.PanelWidth+panelMargin, opts.PanelHeight+panelMargin*2
	width, height := cols*cellW+panelMargin, rows*cellH+legendHeight

	horizon := forecastStart(data)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">
<rect width="100%%" height="100%%" fill="#ffffff"/>
`, width, height, width, height))

	writeLegend(&sb, preds)

	for sp, name := range data.Species {
		rowsSp := data.SpeciesRows(sp)
		p := panel{
			x0: float64(panelMargin + (sp%cols)*cellW),
			y0: float64(legendHeight + panelMargin + (sp/cols)*cellH),
			w:  float64(opts.PanelWidth),
			h:  float64(opts.PanelHeight),
			b:  bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)},
		}

		var spPreds [][]gam.PredictedRow
		for _, pr := range preds {
			spPreds = append(spPreds, pr.ForSpecies(name))
		}
		for _, r := range rowsSp {
			p.b.add(float64(r.Time), r.Truth)
			p.b.add(float64(r.Time), r.Y)
		}
		for _, rs := range spPreds {
			for _, r := range rs {
				p.b.add(float64(r.Time), r.Lower)
				p.b.add(float64(r.Time), r.Upper)
			}
		}
		p.b.pad()

		title := name
		if rowsSp[0].Weight == 0 {
			title += " (withheld)"
		}
		sb.WriteString(fmt.Sprintf(`<g class="panel" id="panel-%s">
<text x="%.1f" y="%.1f" font-size="12">%s</text>
<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="#999999"/>
`, html.EscapeString(name), p.x0, p.y0-6, html.EscapeString(title), p.x0, p.y0, p.w, p.h))

		if horizon <= data.NumTimes() {
			x := p.px(float64(horizon) - 0.5)
			sb.WriteString(fmt.Sprintf(`<rect class="horizon" x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="#eeeeee"/>
`, x, p.y0, p.x0+p.w-x, p.h))
		}

		for i, rs := range spPreds {
			writeBand(&sb, p, rs, Palette[i%len(Palette)])
		}

		xs := make([]float64, len(rowsSp))
		truth := make([]float64, len(rowsSp))
		for i, r := range rowsSp {
			xs[i], truth[i] = float64(r.Time), r.Truth
		}
		sb.WriteString(fmt.Sprintf(`<path class="truth" fill="none" stroke="#000000" stroke-width="1.2" stroke-dasharray="4,2" d="%s"/>
`, p.path(xs, truth)))

		for _, r := range rowsSp {
			if r.Observed() {
				sb.WriteString(fmt.Sprintf(`<circle class="obs" cx="%.1f" cy="%.1f" r="1.8" fill="#555555"/>
`, p.px(float64(r.Time)), p.py(r.Y)))
			}
		}
		sb.WriteString("</g>\n")
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func writeBand(sb *strings.Builder, p panel, rows []gam.PredictedRow, colour string) {
	if len(rows) < 2 {
		return
	}
	xs := make([]float64, 0, 2*len(rows))
	ys := make([]float64, 0, 2*len(rows))
	for _, r := range rows {
		xs, ys = append(xs, float64(r.Time)), append(ys, r.Upper)
	}
	for i := len(rows) - 1; i >= 0; i-- {
		xs, ys = append(xs, float64(rows[i].Time)), append(ys, rows[i].Lower)
	}
	sb.WriteString(fmt.Sprintf(`<path class="band" fill="%s" fill-opacity="0.2" stroke="none" d="%s Z"/>
`, colour, p.path(xs, ys)))

	xs, ys = xs[:0], ys[:0]
	for _, r := range rows {
		xs, ys = append(xs, float64(r.Time)), append(ys, r.Mean)
	}
	sb.WriteString(fmt.Sprintf(`<path class="mean" fill="none" stroke="%s" stroke-width="1.5" d="%s"/>
`, colour, p.path(xs, ys)))
}

func writeLegend(sb *strings.Builder, preds []*gam.Prediction) {
	x := float64(panelMargin)
	sb.WriteString(fmt.Sprintf(`<g class="legend" font-size="12">
<line x1="%.1f" y1="15" x2="%.1f" y2="15" stroke="#000000" stroke-dasharray="4,2"/><text x="%.1f" y="19">truth</text>
`, x, x+20, x+24))
	x += 80
	for i, p := range preds {
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="15" x2="%.1f" y2="15" stroke="%s" stroke-width="2"/><text x="%.1f" y="19">%s</text>
`, x, x+20, Palette[i%len(Palette)], x+24, html.EscapeString(p.Model)))
		x += 100
	}
	sb.WriteString("</g>\n")
}

// forecastStart is the first time at which no species is observed.
func forecastStart(data *sim.Dataset) int {
	last := 0
	for _, r := range data.Rows {
		if r.Observed() && r.Time > last {
			last = r.Time
		}
	}
	return last + 1
}
