package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/san-kum/phylogam/internal/experiment"
	"github.com/san-kum/phylogam/internal/gam"
)

func formatScore(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

// ScoreTable renders scores grouped by subset. Within each subset the
// lowest CRPS is highlighted.
func ScoreTable(scores []experiment.Score) string {
	best := make(map[string]float64)
	for _, s := range scores {
		if b, ok := best[s.Subset]; !math.IsNaN(s.CRPS) && (!ok || s.CRPS < b) {
			best[s.Subset] = s.CRPS
		}
	}

	rows := make([][]string, 0, len(scores))
	winners := make(map[int]bool)
	for _, s := range scores {
		if b, ok := best[s.Subset]; ok && s.CRPS == b {
			winners[len(rows)] = true
		}
		rows = append(rows, []string{
			s.Subset,
			s.Model,
			fmt.Sprintf("%d", s.Rows),
			formatScore(s.CRPS),
			formatScore(s.RMSE),
			formatScore(s.Coverage),
			formatScore(s.Width),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#444466"))).
		Headers("subset", "model", "rows", "crps", "rmse", "coverage", "width").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return HeaderStyle.Padding(0, 1)
			case winners[row] && col == 3:
				return Winner.Padding(0, 1)
			default:
				return lipgloss.NewStyle().Padding(0, 1)
			}
		})
	return t.Render()
}

// FitTable summarizes smoothing parameters and effective degrees of
// freedom for each fitted model.
func FitTable(fits map[string]*gam.Fit) string {
	names := make([]string, 0, len(fits))
	for name := range fits {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		f := fits[name]
		lambdas := make([]string, len(f.LogLambdas))
		for i, v := range f.LogLambdas {
			lambdas[i] = fmt.Sprintf("%.2f", v)
		}
		rows = append(rows, []string{
			name,
			strings.Join(lambdas, " "),
			fmt.Sprintf("%.4f", f.Scale),
			fmt.Sprintf("%.2f", f.EDF),
			fmt.Sprintf("%.3f", f.REML),
			fmt.Sprintf("%d", f.Evaluations),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#444466"))).
		Headers("model", "log lambda", "scale", "edf", "reml", "evals").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Render()
}
