package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/phylogam/internal/gam"
	"github.com/san-kum/phylogam/internal/metrics"
	"github.com/san-kum/phylogam/internal/sim"
)

// Browser is a Bubble Tea model that steps through the species of one run.
type Browser struct {
	title         string
	data          *sim.Dataset
	preds         []*gam.Prediction
	cursor        int
	theme         int
	bands         bool
	width, height int
}

func NewBrowser(title string, data *sim.Dataset, preds []*gam.Prediction) *Browser {
	return &Browser{
		title:  title,
		data:   data,
		preds:  preds,
		width:  100,
		height: 30,
	}
}

func (b *Browser) Init() tea.Cmd { return nil }

func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return b, tea.Quit
		case "up", "k":
			if b.cursor > 0 {
				b.cursor--
			}
		case "down", "j":
			if b.cursor < len(b.data.Species)-1 {
				b.cursor++
			}
		case "b":
			b.bands = !b.bands
		case "t":
			b.theme = (b.theme + 1) % len(Themes)
		}
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
	}
	return b, nil
}

// Selected returns the species under the cursor.
func (b *Browser) Selected() string {
	if len(b.data.Species) == 0 {
		return ""
	}
	return b.data.Species[b.cursor]
}

func (b *Browser) View() string {
	if len(b.data.Species) == 0 {
		return "no species\n"
	}
	theme := Themes[b.theme]

	var list strings.Builder
	for i, name := range b.data.Species {
		rows := b.data.SpeciesRows(i)
		truth := make([]float64, len(rows))
		for j, r := range rows {
			truth[j] = r.Truth
		}
		label := fmt.Sprintf("%-6s", name)
		if rows[0].Weight == 0 {
			label += "*"
		} else {
			label += " "
		}
		if i == b.cursor {
			label = NeonGlow.Render("> " + label)
		} else {
			label = "  " + label
		}
		list.WriteString(label + " " + SparklineChart(truth, 12) + "\n")
	}

	opts := DefaultPlotOptions()
	opts.Bands, opts.Theme = b.bands, theme
	if w := b.width - 40; w > 20 {
		opts.Width = w
	}
	plot, err := SpeciesPlot(b.data, b.preds, b.Selected(), opts)
	if err != nil {
		plot = err.Error()
	}

	var scores strings.Builder
	species := b.Selected()
	for _, p := range b.preds {
		v := metrics.Evaluate(p.Rows, func(r gam.PredictedRow) bool { return r.Species == species })
		scores.WriteString(MetricLabel.Render(p.Model+" crps ") + MetricValue.Render(formatScore(v["crps"])) +
			MetricLabel.Render("  coverage ") + MetricValue.Render(formatScore(v["coverage"])) + "\n")
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Render(b.title)
	left := GlassPanel.BorderForeground(theme.Muted).Render(list.String())
	right := lipgloss.JoinVertical(lipgloss.Left, plot, "", scores.String())
	help := KeyHint.Render("j/k select  b bands  t theme (" + theme.Name + ")  q quit  * withheld")

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
		help,
	) + "\n"
}
