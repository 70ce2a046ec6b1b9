package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/phylogam/internal/automation"
	"github.com/san-kum/phylogam/internal/config"
	"github.com/san-kum/phylogam/internal/experiment"
	"github.com/san-kum/phylogam/internal/export"
	"github.com/san-kum/phylogam/internal/gam"
	"github.com/san-kum/phylogam/internal/phylo"
	"github.com/san-kum/phylogam/internal/sim"
	"github.com/san-kum/phylogam/internal/storage"
	"github.com/san-kum/phylogam/internal/viz"
	"github.com/spf13/cobra"
)

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	slog.Info("running experiment", "seed", cfg.Seed, "species", cfg.Species, "times", cfg.Times, "models", cfg.Fit.Models)
	res, err := experiment.New(cfg).Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println(viz.Title.Render(fmt.Sprintf("phylogam  seed %d", cfg.Seed)))
	fmt.Println(viz.ScoreTable(res.Scores))
	fmt.Println(viz.FitTable(res.Fits))
	if w := res.Winner(experiment.SubsetWithheld); w != "" {
		fmt.Println(viz.Winner.Render("winner on withheld species: " + w))
	}
	fmt.Println(viz.Subtle.Render(fmt.Sprintf("elapsed %s", res.Elapsed.Round(1e6))))

	if noSave {
		return nil
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(res)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	preds := make([]*gam.Prediction, 0, len(res.Models))
	for _, name := range res.Models {
		if p, ok := res.Predictions[name]; ok {
			preds = append(preds, p)
		}
	}
	if err := st.SaveFigure(runID, export.FigureSVG(res.Sim.Data, preds, export.DefaultFigureOptions())); err != nil {
		return fmt.Errorf("failed to save figure: %w", err)
	}
	slog.Info("saved run", "id", runID, "dir", st.Path(runID, ""))
	return nil
}

func simulateData(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	s := sim.New(cfg.Simulation())
	if cfg.TreeFile != "" {
		tree, err := phylo.LoadNewick(cfg.TreeFile)
		if err != nil {
			return err
		}
		s.WithTree(tree)
	}
	res, err := s.Run(cmd.Context())
	if err != nil {
		return err
	}

	if treeOut != "" {
		if err := os.WriteFile(treeOut, []byte(res.Tree.Newick()+"\n"), 0o644); err != nil {
			return err
		}
	}
	return storage.WriteObservationsCSV(os.Stdout, res.Data)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSEED\tSPECIES\tTIMES\tWITHHELD\tWINNER\tCRPS (withheld)")
	for _, r := range runs {
		var crps []string
		for _, m := range r.Models {
			if s, ok := r.Score(m, experiment.SubsetWithheld); ok {
				crps = append(crps, fmt.Sprintf("%s=%.4f", m, float64(s.CRPS)))
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			r.ID,
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Seed,
			len(r.Species),
			r.Times,
			strings.Join(r.Withheld, ","),
			r.Winner,
			strings.Join(crps, " "),
		)
	}
	return w.Flush()
}

// resolveRun returns the run named in args, or the latest run.
func resolveRun(st *storage.Store, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return st.Latest()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	data, err := st.LoadObservations(runID)
	if err != nil {
		return err
	}
	preds, err := st.LoadPredictions(runID)
	if err != nil {
		return err
	}

	names := speciesName
	if len(names) == 0 {
		names = meta.Withheld
	}
	opts := viz.DefaultPlotOptions()
	opts.Bands = bands

	for _, name := range names {
		plot, err := viz.SpeciesPlot(data, preds, name, opts)
		if err != nil {
			return err
		}
		fmt.Println(viz.HeaderStyle.Render(name))
		fmt.Println(plot)
		fmt.Println()
	}
	return nil
}

func showTree(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	tree, err := st.LoadTree(runID)
	if err != nil {
		return err
	}

	fmt.Println(tree.Newick())
	fmt.Println()

	labels := tree.Labels()
	vcv := tree.VCV()
	shared := math.Inf(1)
	maxShared := 0.0
	for i := range labels {
		for j := i + 1; j < len(labels); j++ {
			v := vcv.At(i, j)
			shared = math.Min(shared, v)
			maxShared = math.Max(maxShared, v)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SPECIES\tDEPTH")
	for i, l := range labels {
		fmt.Fprintf(w, "%s\t%.4f\n", l, vcv.At(i, i))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(labels) > 1 {
		fmt.Printf("\nshared path length: min %.4f, max %.4f\n", shared, maxShared)
	}
	return nil
}

// output returns stdout, or the file at outPath.
func output() (io.WriteCloser, error) {
	if outPath == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(outPath)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	w, err := output()
	if err != nil {
		return err
	}
	if err := st.ExportCSV(w, runID, obsOnly); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	if outPath != "" {
		if err := st.ExportJSONFile(outPath, runID); err != nil {
			return err
		}
		slog.Info("exported run", "id", runID, "path", outPath)
		return nil
	}
	return st.ExportJSON(os.Stdout, runID)
}

func compareModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if numSeeds < 1 {
		return fmt.Errorf("--seeds must be positive, got %d", numSeeds)
	}
	seeds := make([]int64, numSeeds)
	for i := range seeds {
		seeds[i] = cfg.Seed + int64(i)
	}

	res, err := automation.Compare(cmd.Context(), cfg, seeds, slog.Default())
	if err != nil {
		return err
	}
	printStepResults([]automation.StepResult{*res})
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tSPECIES\tTIMES\tHOLDOUT\tWITHHELD\tNOISE\tBASIS")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.2f\t%d\n", name, p.Species, p.Times, p.Holdout, p.Withheld, p.NoiseSD, p.Fit.Basis)
	}
	return w.Flush()
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	slog.Info("running scenario", "name", scenario.Name, "steps", len(scenario.Steps))

	results, err := automation.RunScenario(cmd.Context(), scenario, slog.Default())
	if err != nil {
		return err
	}
	printStepResults(results)

	if outPath == "" {
		return nil
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printStepResults(results []automation.StepResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tPARAM\tSEEDS\tMODEL\tMEAN CRPS\tWINS")
	for _, r := range results {
		param := "-"
		if r.Param != "" {
			param = fmt.Sprintf("%s=%g", r.Param, r.Value)
		}
		names := make([]string, 0, len(r.MeanCRPS))
		for m := range r.MeanCRPS {
			names = append(names, m)
		}
		sort.Strings(names)
		for _, m := range names {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.4f\t%d\n", r.Name, param, len(r.Seeds), m, r.MeanCRPS[m], r.Wins[m])
		}
	}
	w.Flush()
}

func viewRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	data, err := st.LoadObservations(runID)
	if err != nil {
		return err
	}
	preds, err := st.LoadPredictions(runID)
	if err != nil {
		return err
	}

	p := tea.NewProgram(viz.NewBrowser(runID, data, preds), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
