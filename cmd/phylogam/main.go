package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/san-kum/phylogam/internal/config"
	"github.com/san-kum/phylogam/internal/logging"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string

	configFile string
	seed       int64
	species    int
	times      int
	holdout    int
	withheld   int
	noiseSD    float64
	treeFile   string
	basisSize  int
	models     []string

	noSave      bool
	speciesName []string
	bands       bool
	outPath     string
	obsOnly     bool
	numSeeds    int
	treeOut     string
)

// main registers the commands and runs the root command, exiting with
// status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "phylogam",
		Short:         "phylogenetic smoothing experiment lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logging.New(level, os.Stderr))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".phylogam", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "simulate, fit both models and score them",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExperiment,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the run")

	simulateCmd := &cobra.Command{
		Use:   "simulate [preset]",
		Short: "simulate a dataset and write it as CSV to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE:  simulateData,
	}
	addConfigFlags(simulateCmd)
	simulateCmd.Flags().StringVar(&treeOut, "tree-out", "", "write the simulated tree as Newick to this path")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot truth, observations and model means per species",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&speciesName, "species", nil, "species to plot (default: withheld species)")
	plotCmd.Flags().BoolVar(&bands, "bands", false, "draw 95% bounds")

	treeCmd := &cobra.Command{
		Use:   "tree [run_id]",
		Short: "print the run's tree and covariance summary",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showTree,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run predictions to CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().BoolVar(&obsOnly, "observations", false, "export observations instead of predictions")
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default stdout)")

	compareCmd := &cobra.Command{
		Use:   "compare [preset]",
		Short: "compare models over several seeds",
		Args:  cobra.MaximumNArgs(1),
		RunE:  compareModels,
	}
	addConfigFlags(compareCmd)
	compareCmd.Flags().IntVar(&numSeeds, "seeds", 5, "number of seeds, starting at --seed")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE:  listPresets,
	}

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run a YAML batch scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().StringVarP(&outPath, "out", "o", "", "write results as JSON to this path")

	viewCmd := &cobra.Command{
		Use:   "view [run_id]",
		Short: "browse a run's species interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  viewRun,
	}

	rootCmd.AddCommand(runCmd, simulateCmd, listCmd, plotCmd, treeCmd, exportCSVCmd, exportJSONCmd, compareCmd, presetsCmd, batchCmd, viewCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&species, "species", config.DefaultSpecies, "number of species")
	cmd.Flags().IntVar(&times, "times", config.DefaultTimes, "number of time points")
	cmd.Flags().IntVar(&holdout, "holdout", config.DefaultHoldout, "final time points withheld from every species")
	cmd.Flags().IntVar(&withheld, "withheld", config.DefaultWithheld, "species with no observations")
	cmd.Flags().Float64Var(&noiseSD, "noise", config.DefaultNoiseSD, "observation noise sd")
	cmd.Flags().StringVar(&treeFile, "tree", "", "Newick tree file (overrides --species)")
	cmd.Flags().IntVar(&basisSize, "basis", config.DefaultBasis, "basis functions in s(time)")
	cmd.Flags().StringSliceVar(&models, "models", []string{"phylo", "baseline"}, "models to fit")
}

// loadConfig resolves the preset argument, then the config file, then any
// flags set on the command line, in increasing priority.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("species") {
		cfg.Species = species
	}
	if flags.Changed("times") {
		cfg.Times = times
	}
	if flags.Changed("holdout") {
		cfg.Holdout = holdout
	}
	if flags.Changed("withheld") {
		cfg.Withheld = withheld
	}
	if flags.Changed("noise") {
		cfg.NoiseSD = noiseSD
	}
	if flags.Changed("tree") {
		cfg.TreeFile = treeFile
	}
	if flags.Changed("basis") {
		cfg.Fit.Basis = basisSize
	}
	if flags.Changed("models") {
		cfg.Fit.Models = models
	}

	return cfg, cfg.Validate()
}
