package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/san-kum/ljmetad/internal/config"
)

var (
	dataDir    string
	configFile string
	preset     string
	verbose    bool

	// run
	steps      int
	stride     int
	dt         float64
	kT         float64
	friction   float64
	seed       int64
	integrator string
	fixCM      bool
	live       bool
	engineDir  string

	// replay
	replayOut  string
	keepStride bool

	// fes and plot-fes
	hillsFile string
	fesFile   string
	bins      []int
	gridMin   []float64
	gridMax   []float64
	fesTool   string
	minToZero bool
	svgOut    string
	ceiling   float64

	// plot-colvar and analyze
	columns    []string
	plotWidth  int
	plotHeight int

	// sweep
	sweepParam   string
	sweepMin     float64
	sweepMax     float64
	sweepPoints  int
	sweepWorkers int

	exportOut string
)

// main registers the commands and runs the root command, exiting with
// status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "ljmetad",
		Short:         "metadynamics of a two-dimensional Lennard-Jones cluster",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".ljmetad", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "lj7", "preset configuration, used when no config file is given")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the biased molecular dynamics",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	runCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	runCmd.Flags().IntVar(&stride, "stride", config.DefaultStride, "trajectory recording stride")
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultTimestep, "timestep")
	runCmd.Flags().Float64Var(&kT, "kt", config.DefaultKT, "thermal energy (eV)")
	runCmd.Flags().Float64Var(&friction, "friction", config.DefaultFriction, "langevin friction")
	runCmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	runCmd.Flags().StringVar(&integrator, "integrator", "langevin", "integrator (langevin, verlet)")
	runCmd.Flags().BoolVar(&fixCM, "fixcm", false, "remove center-of-mass drift")
	runCmd.Flags().BoolVar(&live, "live", false, "follow the run in a terminal view")
	runCmd.Flags().StringVar(&engineDir, "dir", "", "directory for COLVAR and HILLS (default: plumed.dir, else the run directory)")

	replayCmd := &cobra.Command{
		Use:   "replay [run_id | trajectory.db]",
		Short: "regenerate engine output from a recorded trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  replayRun,
	}
	replayCmd.Flags().StringVar(&replayOut, "out", "", "output directory (default: <run>/replay)")
	replayCmd.Flags().BoolVar(&keepStride, "keep-stride", false, "keep PRINT strides as written")

	fesCmd := &cobra.Command{
		Use:   "fes",
		Short: "reconstruct the free-energy surface from a HILLS file",
		Args:  cobra.NoArgs,
		RunE:  reconstructFES,
	}
	addGridFlags(fesCmd)
	fesCmd.Flags().StringVar(&hillsFile, "hills", "HILLS", "hills file")
	fesCmd.Flags().StringVar(&fesTool, "tool", "auto", "reconstruction tool (auto, plumed, sum_hills)")
	fesCmd.Flags().BoolVar(&minToZero, "mintozero", false, "shift the minimum to zero")

	plotColvarCmd := &cobra.Command{
		Use:   "plot-colvar [COLVAR]",
		Short: "plot collective variables against time",
		Args:  cobra.ExactArgs(1),
		RunE:  plotColvar,
	}
	plotColvarCmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to plot (default: all)")
	plotColvarCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotColvarCmd.Flags().IntVar(&plotHeight, "height", 12, "plot height")

	plotFESCmd := &cobra.Command{
		Use:   "plot-fes [fes.dat]",
		Short: "draw a free-energy grid as a heatmap",
		Args:  cobra.ExactArgs(1),
		RunE:  plotFES,
	}
	addGridFlags(plotFESCmd)
	plotFESCmd.Flags().IntVar(&plotWidth, "width", 60, "heatmap width")
	plotFESCmd.Flags().IntVar(&plotHeight, "height", 30, "heatmap height")
	plotFESCmd.Flags().Float64Var(&ceiling, "ceiling", 0, "blank out free energies this far above the minimum")
	plotFESCmd.Flags().StringVar(&svgOut, "svg", "", "also write an SVG image")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [COLVAR]",
		Short: "statistics and frequency analysis of collective variables",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeColvar,
	}
	analyzeCmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to analyze (default: all)")
	analyzeCmd.Flags().Float64Var(&kT, "kt", config.DefaultKT, "thermal energy for the histogram free energy")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run the pipeline over a range of one parameter",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepParam, "param", "kt", "parameter to vary (kt, timestep, friction, seed)")
	sweepCmd.Flags().Float64Var(&sweepMin, "from", 0.05, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "to", 0.2, "last value")
	sweepCmd.Flags().IntVar(&sweepPoints, "points", 4, "number of values")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", runtime.NumCPU(), "concurrent runs")
	sweepCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps per run")
	sweepCmd.Flags().StringVar(&engineDir, "dir", "", "directory for per-run engine files (default: <data>/sweep_<param>)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	initConfigCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the selected preset as a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetPreset(preset)
			if cfg == nil {
				return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s (preset %s)\n", args[0], preset)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, replayCmd, fesCmd, plotColvarCmd, plotFESCmd, analyzeCmd, listCmd, sweepCmd, exportJSONCmd, presetsCmd, initConfigCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func addGridFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fesFile, "outfile", "fes.dat", "free-energy table")
	cmd.Flags().IntSliceVar(&bins, "bins", []int{300, 300}, "bins per axis")
	cmd.Flags().Float64SliceVar(&gridMin, "min", []float64{0.3, -0.35}, "grid minimum per axis")
	cmd.Flags().Float64SliceVar(&gridMax, "max", []float64{1.2, 1.56}, "grid maximum per axis")
}
