package viz

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

// Theme colours the browser and its plots.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Muted   lipgloss.Color
	Truth   asciigraph.AnsiColor
	Obs     asciigraph.AnsiColor
	Models  []asciigraph.AnsiColor
}

var (
	ThemeCyberpunk = Theme{
		Name:    "cyberpunk",
		Primary: lipgloss.Color("#ff00ff"),
		Muted:   lipgloss.Color("#666666"),
		Truth:   asciigraph.White,
		Obs:     asciigraph.Gray,
		Models:  []asciigraph.AnsiColor{asciigraph.Cyan, asciigraph.Magenta, asciigraph.Yellow},
	}

	ThemeRetroGreen = Theme{
		Name:    "retro",
		Primary: lipgloss.Color("#00ff00"),
		Muted:   lipgloss.Color("#005500"),
		Truth:   asciigraph.White,
		Obs:     asciigraph.DarkGreen,
		Models:  []asciigraph.AnsiColor{asciigraph.Lime, asciigraph.Yellow, asciigraph.Olive},
	}

	ThemeMinimal = Theme{
		Name:    "minimal",
		Primary: lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#888888"),
		Truth:   asciigraph.Default,
		Obs:     asciigraph.Gray,
		Models:  []asciigraph.AnsiColor{asciigraph.Blue, asciigraph.Red, asciigraph.Green},
	}
)

var Themes = []Theme{ThemeCyberpunk, ThemeRetroGreen, ThemeMinimal}

func (t Theme) modelColor(i int) asciigraph.AnsiColor {
	return t.Models[i%len(t.Models)]
}
