package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/san-kum/ljmetad/internal/analysis"
	"github.com/san-kum/ljmetad/internal/automation"
	"github.com/san-kum/ljmetad/internal/config"
	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/experiment"
	"github.com/san-kum/ljmetad/internal/export"
	"github.com/san-kum/ljmetad/internal/fes"
	"github.com/san-kum/ljmetad/internal/plumed"
	"github.com/san-kum/ljmetad/internal/storage"
	"github.com/san-kum/ljmetad/internal/trajectory"
	"github.com/san-kum/ljmetad/internal/viz"
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444")).Bold(true)
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
	valStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

// loadConfig starts from the config file or the preset and applies every
// flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else if cfg = config.GetPreset(preset); cfg == nil {
		return nil, fmt.Errorf("%w: unknown preset: %s (available: %v)", dynamo.ErrConfiguration, preset, config.ListPresets())
	}

	flags := cmd.Flags()
	if flags.Changed("steps") {
		cfg.MD.Steps = steps
	}
	if flags.Changed("stride") {
		cfg.MD.Stride = stride
	}
	if flags.Changed("dt") {
		cfg.MD.Timestep = dt
	}
	if flags.Changed("kt") {
		cfg.MD.KT = kT
	}
	if flags.Changed("friction") {
		cfg.MD.Friction = friction
	}
	if flags.Changed("seed") {
		cfg.MD.Seed = seed
	}
	if flags.Changed("integrator") {
		cfg.MD.Integrator = integrator
	}
	if flags.Changed("fixcm") {
		cfg.MD.FixCM = fixCM
	}
	if flags.Changed("dir") {
		cfg.Plumed.Dir = engineDir
	}
	if flags.Changed("hills") {
		cfg.FES.Hills = hillsFile
	}
	if flags.Changed("outfile") {
		cfg.FES.Outfile = fesFile
	}
	if flags.Changed("bins") {
		cfg.FES.Bins = bins
	}
	if flags.Changed("min") {
		cfg.FES.Min = gridMin
	}
	if flags.Changed("max") {
		cfg.FES.Max = gridMax
	}
	if flags.Changed("tool") {
		cfg.FES.Tool = fesTool
	}
	if flags.Changed("mintozero") {
		cfg.FES.MinToZero = minToZero
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func printKV(key string, val any) {
	fmt.Println(keyStyle.Render(key) + valStyle.Render(fmt.Sprint(val)))
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	name := preset
	if configFile != "" {
		name = strings.TrimSuffix(filepath.Base(configFile), filepath.Ext(configFile))
	}
	runID, err := st.NewRun(name)
	if err != nil {
		return err
	}
	if cfg.MD.Trajectory == "" {
		cfg.MD.Trajectory = st.TrajectoryPath(runID)
	}
	if cfg.Plumed.Dir == "" {
		cfg.Plumed.Dir = st.RunDir(runID)
	}
	if err := config.Save(filepath.Join(st.RunDir(runID), "config.yaml"), cfg); err != nil {
		return err
	}
	p, err := experiment.New(cfg, slog.Default())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var (
		opts experiment.RunOptions
		res  *experiment.RunResult
	)
	if live {
		res, err = runLive(ctx, p, opts)
	} else {
		fmt.Printf("running %s for %s steps...\n", name, humanize.Comma(int64(cfg.MD.Steps)))
		res, err = p.Forward(ctx, opts)
	}
	if res != nil && res.Store != nil {
		if cerr := res.Store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return err
	}

	directives, _ := cfg.EngineDirectives()
	meta := storage.RunMetadata{
		ID:         runID,
		Preset:     name,
		Seed:       cfg.MD.Seed,
		Timestep:   cfg.MD.Timestep,
		Steps:      res.Steps,
		Stride:     cfg.MD.Stride,
		Frames:     res.Frames,
		Trajectory: cfg.MD.Trajectory,
		Integrator: cfg.MD.Integrator,
		ForceField: cfg.ForceField.Type,
		Directives: directives,
		Metrics:    res.Metrics,
	}
	meta.Metrics["final_energy"] = res.FinalEnergy
	meta.Metrics["elapsed_seconds"] = res.Elapsed.Seconds()
	if err := st.Save(meta, res.Thermo); err != nil {
		return err
	}

	fmt.Println()
	printKV("run id", runID)
	printKV("completed in", res.Elapsed.Round(time.Millisecond))
	printKV("steps", humanize.Comma(int64(res.Steps)))
	printKV("frames", humanize.Comma(int64(res.Frames)))
	if info, err := os.Stat(cfg.MD.Trajectory); err == nil {
		printKV("trajectory", fmt.Sprintf("%s (%s)", cfg.MD.Trajectory, humanize.Bytes(uint64(info.Size()))))
	}
	printKV("engine output", cfg.Plumed.Dir)
	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(res.Metrics))
	for k := range res.Metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Printf("  %-16s %.6g\n", k, res.Metrics[k])
	}
	return nil
}

// runLive runs the pipeline in the background and shows it in a Bubble Tea
// program until the run ends or the user quits.
func runLive(ctx context.Context, p *experiment.Pipeline, opts experiment.RunOptions) (*experiment.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	md := p.Config().MD
	model := viz.NewModel("lj7", md.Steps, 1.5, cancel)
	prog := tea.NewProgram(model)
	every := max(1, md.Steps/500)
	opts.Observers = append(opts.Observers, viz.NewMonitor(prog, every))

	type outcome struct {
		res *experiment.RunResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := p.Forward(ctx, opts)
		prog.Send(viz.DoneMsg{Err: err})
		done <- outcome{res, err}
	}()

	if _, err := prog.Run(); err != nil {
		cancel()
		<-done
		return nil, err
	}
	out := <-done
	return out.res, out.err
}

// runDirOrFile resolves a run id in the data directory or a path to a
// trajectory file.
func runDirOrFile(arg string) (trajPath, runDir string) {
	st := storage.New(dataDir)
	if _, err := os.Stat(st.TrajectoryPath(arg)); err == nil {
		return st.TrajectoryPath(arg), st.RunDir(arg)
	}
	return arg, filepath.Dir(arg)
}

func replayRun(cmd *cobra.Command, args []string) error {
	trajPath, runDir := runDirOrFile(args[0])
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if configFile == "" {
		if saved, err := config.Load(filepath.Join(runDir, "config.yaml")); err == nil {
			cfg = saved
		}
	}
	p, err := experiment.New(cfg, slog.Default())
	if err != nil {
		return err
	}

	out := replayOut
	if out == "" {
		out = filepath.Join(runDir, "replay")
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	res, err := p.ReplayFile(ctx, trajPath, out, keepStride)
	if err != nil {
		return err
	}
	printKV("frames", humanize.Comma(int64(res.Frames)))
	printKV("output", out)
	if n := len(res.BiasEnergy); n > 0 {
		fmt.Println()
		fmt.Println(viz.PlotSeries(res.BiasEnergy, "bias energy per frame", 70, 8))
	}
	return nil
}

func reconstructFES(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p, err := experiment.New(cfg, slog.Default())
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	g, err := p.Reconstruct(ctx)
	if err != nil {
		return err
	}
	x, y, f := g.Minimum()
	lo, hi := g.Range()
	printKV("outfile", cfg.FES.Outfile)
	printKV("grid", fmt.Sprintf("%d x %d", len(g.X), len(g.Y)))
	printKV("cvs", strings.Join(g.CVs, ", "))
	printKV("minimum", fmt.Sprintf("%.4g at (%.4g, %.4g)", f, x, y))
	printKV("range", fmt.Sprintf("%.4g .. %.4g", lo, hi))
	printKV("took", time.Since(start).Round(time.Millisecond))
	return nil
}

func plotColvar(cmd *cobra.Command, args []string) error {
	t, err := plumed.ReadTable(args[0])
	if err != nil {
		return err
	}
	chart, err := viz.PlotColumns(t, columns, plotWidth, plotHeight)
	if err != nil {
		return err
	}
	fmt.Println(chart)

	names := cvColumns(t, columns)
	if len(names) >= 2 {
		fmt.Println()
		fmt.Println(viz.Title.Render(names[0] + " vs " + names[1]))
		xs, ys := t.Column(t.Index(names[0])), t.Column(t.Index(names[1]))
		fmt.Println(viz.Scatter(xs, ys, plotWidth/2, plotHeight))
	}
	return nil
}

// cvColumns returns the requested columns, or every non-time column.
func cvColumns(t *plumed.Table, requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	var names []string
	for _, f := range t.Fields {
		if f != "time" {
			names = append(names, f)
		}
	}
	return names
}

func plotFES(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req := fes.Request{Hills: args[0], Outfile: args[0], Bins: cfg.FES.Bins, Min: cfg.FES.Min, Max: cfg.FES.Max}
	g, err := fes.ReadGrid(args[0], req)
	if err != nil {
		return err
	}
	title := args[0]
	if len(g.CVs) == 2 {
		title = fmt.Sprintf("%s: %s (x) vs %s (y)", args[0], g.CVs[0], g.CVs[1])
	}
	fmt.Println(viz.Title.Render(title))
	fmt.Println(viz.Heatmap(g.Values, plotWidth, plotHeight, ceiling))

	if svgOut != "" {
		if err := export.WriteSVG(svgOut, export.GridToSVG(g, 2, ceiling)); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgOut)
	}
	return nil
}

func analyzeColvar(cmd *cobra.Command, args []string) error {
	t, err := plumed.ReadTable(args[0])
	if err != nil {
		return err
	}
	if len(t.Rows) < 2 {
		return fmt.Errorf("%w: %s has fewer than two rows", dynamo.ErrIO, args[0])
	}
	names := cvColumns(t, columns)

	sample := 0.0
	if ti := t.Index("time"); ti >= 0 {
		sample = t.Rows[1][ti] - t.Rows[0][ti]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CV\tN\tMEAN\tSTD\tMIN\tMAX\tMEDIAN\tFREQ")
	for _, name := range names {
		i := t.Index(name)
		if i < 0 {
			return dynamo.Configf("no column %q in %s", name, args[0])
		}
		col := t.Column(i)
		s := analysis.Summarize(col)
		fmt.Fprintf(w, "%s\t%d\t%.5g\t%.5g\t%.5g\t%.5g\t%.5g\t%.4g\n",
			name, s.N, s.Mean, s.StdDev, s.Min, s.Max, s.Median, analysis.DominantFrequency(col, sample))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(names) >= 2 {
		xs, ys := t.Column(t.Index(names[0])), t.Column(t.Index(names[1]))
		sx, sy := analysis.Summarize(xs), analysis.Summarize(ys)
		pad := func(s analysis.Summary) (float64, float64) {
			d := (s.Max - s.Min) * 0.05
			if d == 0 {
				d = 0.5
			}
			return s.Min - d, s.Max + d
		}
		x0, x1 := pad(sx)
		y0, y1 := pad(sy)
		h, err := analysis.NewHistogram2D(xs, ys, [2]int{40, 20}, [2]float64{x0, y0}, [2]float64{x1, y1})
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(viz.Title.Render(fmt.Sprintf("-kT ln p(%s, %s), kT = %g", names[0], names[1], kT)))
		fmt.Println(viz.Heatmap(h.FreeEnergy(kT), 40, 20, 0))
	}
	return nil
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
	fmt.Fprintln(w, "ID\tPRESET\tWHEN\tSTEPS\tFRAMES\tDT\tINTEG\tBIASED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.4g\t%s\t%v\n",
			run.ID,
			run.Preset,
			humanize.Time(run.Timestamp),
			humanize.Comma(int64(run.Steps)),
			humanize.Comma(int64(run.Frames)),
			run.Timestep,
			run.Integrator,
			len(run.Directives) > 0,
		)
	}
	return w.Flush()
}

func exportJSON(cmd *cobra.Command, args []string) (err error) {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	thermo, err := st.LoadThermo(runID)
	if err != nil {
		return err
	}

	var traj trajectory.Store
	if _, serr := os.Stat(st.TrajectoryPath(runID)); serr == nil {
		s, oerr := trajectory.Open(context.Background(), st.TrajectoryPath(runID))
		if oerr != nil {
			return oerr
		}
		defer func() { err = errors.Join(err, s.Close()) }()
		traj = s
	}

	out := os.Stdout
	if exportOut != "" {
		f, cerr := os.Create(exportOut)
		if cerr != nil {
			return cerr
		}
		defer func() { err = errors.Join(err, f.Close()) }()
		out = f
	}
	return storage.ExportJSON(out, *meta, thermo, traj)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := engineDir
	if dir == "" {
		dir = filepath.Join(dataDir, "sweep_"+sweepParam)
	}

	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	results, err := automation.RunSweep(ctx, &automation.ParameterSweep{
		Base:    cfg,
		Param:   sweepParam,
		Min:     sweepMin,
		Max:     sweepMax,
		Points:  sweepPoints,
		Dir:     dir,
		Workers: sweepWorkers,
		Logger:  slog.Default(),
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tsteps\tfinal energy\tdrift\ttemperature\tstability\n", sweepParam)
	for _, r := range results {
		fmt.Fprintf(w, "%.4g\t%s\t%.6f\t%.3e\t%.4f\t%.3f\n",
			r.ParamValue, humanize.Comma(int64(r.Steps)), r.FinalEnergy, r.EnergyDrift, r.Temperature, r.Stability)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d runs in %s, engine files in %s\n", len(results), time.Since(start).Round(time.Millisecond), dir)
	return nil
}
