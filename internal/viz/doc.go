// Package viz renders experiment results in the terminal.
//
//   - [ScoreTable] and [FitTable]: lipgloss tables of model scores and fits
//   - [SpeciesPlot]: asciigraph plot of truth, observations and model means
//   - [Browser]: Bubble Tea species browser over one saved run
//
// # Key Bindings
//
//	j/k, up/down - Select species
//	b            - Toggle 95% bands
//	t            - Cycle color themes
//	q            - Quit
package viz
