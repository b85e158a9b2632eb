package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/san-kum/popsim/internal/analysis"
	"github.com/san-kum/popsim/internal/config"
	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/san-kum/popsim/internal/experiment"
	"github.com/san-kum/popsim/internal/export"
	"github.com/san-kum/popsim/internal/logger"
	"github.com/san-kum/popsim/internal/metrics"
	"github.com/san-kum/popsim/internal/report"
	"github.com/san-kum/popsim/internal/storage"
)

var (
	dataDir     string
	configFile  string
	metricsFile string
	logLevel    string
	dt          float64
	steps       int
	seed        int64
	outPath     string
	jsonPath    string
	noSave      bool
	// Phase plot size
	width  int
	height int
)

// app bundles what every scenario command needs.
type app struct {
	log      zerolog.Logger
	registry *experiment.Registry
	prom     *prometheus.Registry
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "popsim",
		Short:         "population dynamics lab: euler trajectories, vector fields, nullclines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".popsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "scenario file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "integrate one trajectory and print the iteration table",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTrajectory,
	}
	addScenarioFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().StringVar(&jsonPath, "json", "", "also write the trajectory as JSON to this path")

	phaseCmd := &cobra.Command{
		Use:   "phase [preset]",
		Short: "phase plane: field, nullclines and trajectories as SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  phasePlane,
	}
	addScenarioFlags(phaseCmd)
	phaseCmd.Flags().StringVar(&outPath, "out", "", "svg output path (default <scenario>.svg)")
	phaseCmd.Flags().IntVar(&width, "width", 800, "svg width")
	phaseCmd.Flags().IntVar(&height, "height", 600, "svg height")

	fieldCmd := &cobra.Command{
		Use:   "field [preset]",
		Short: "sample the vector or slope field as CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sampleField,
	}
	addScenarioFlags(fieldCmd)
	fieldCmd.Flags().StringVar(&outPath, "out", "", "csv output path (default stdout)")

	nullclineCmd := &cobra.Command{
		Use:   "nullcline [preset]",
		Short: "compute the configured nullclines",
		Args:  cobra.MaximumNArgs(1),
		RunE:  computeNullclines,
	}
	addScenarioFlags(nullclineCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "sweep dt or a parameter and plot where the trajectory settles",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addScenarioFlags(sweepCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenarios and models",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("presets:")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("  %-16s model=%s dt=%g steps=%d\n", name, p.Model, p.Dt, p.Steps)
			}
			fmt.Println("models:")
			for _, m := range experiment.NewRegistry().ListModels() {
				fmt.Printf("  %s\n", m)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, phaseCmd, fieldCmd, nullclineCmd, sweepCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep (overrides scenario)")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps (overrides scenario)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (overrides scenario)")
}

func newApp() *app {
	log := logger.New("cli").Level(logger.ParseLevel(logLevel))
	return &app{
		log:      log,
		registry: experiment.NewRegistry(),
		prom:     prometheus.NewRegistry(),
	}
}

// loadScenario resolves the scenario from --config, a preset argument or
// the default, then applies flag overrides.
func loadScenario(cmd *cobra.Command, args []string) (*config.Scenario, error) {
	var cfg *config.Scenario
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	case len(args) > 0:
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
	default:
		cfg = config.DefaultScenario()
	}

	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("steps") {
		cfg.Steps = steps
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	return cfg, cfg.Validate()
}

// newExperiment builds the scenario's experiment with Prometheus counting
// attached.
func (a *app) newExperiment(cfg *config.Scenario) (*experiment.Experiment, error) {
	exp, err := experiment.New(cfg, a.registry, a.log)
	if err != nil {
		return nil, err
	}
	obs, err := metrics.NewPromObserver(a.prom, cfg.Model)
	if err != nil {
		return nil, err
	}
	exp.GetSimulator().AddObserver(obs)
	return exp, nil
}

func (a *app) flushMetrics() {
	if metricsFile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(metricsFile, a.prom); err != nil {
		a.log.Error().Err(err).Str("path", metricsFile).Msg("failed to write metrics")
	}
}

func runTrajectory(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}
	a := newApp()
	defer a.flushMetrics()

	exp, err := a.newExperiment(cfg)
	if err != nil {
		return err
	}
	labels := dynamo.LabelsOf(exp.Model())

	tr, runErr := exp.Trajectory(cmd.Context())
	if tr == nil {
		return runErr
	}

	fmt.Println(report.Title(fmt.Sprintf("%s (%s) dt=%g steps=%d", cfg.Name, cfg.Model, cfg.Dt, cfg.Steps)))
	fmt.Printf("params: %s\n\n", exp.Params())
	if err := report.Table(os.Stdout, labels, tr); err != nil {
		return err
	}
	fmt.Println()
	report.Summary(os.Stdout, labels, tr)
	report.ModelSummary(os.Stdout, exp.Model(), exp.Params(), tr)
	if runErr != nil {
		return runErr
	}

	if jsonPath != "" {
		data := export.FromTrajectory(cfg.Model, labels, exp.Params(), tr)
		data.Scenario = cfg.Name
		if err := export.ExportJSON(jsonPath, data); err != nil {
			return err
		}
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(storage.Run{
		Scenario:   cfg.Name,
		Model:      cfg.Model,
		Seed:       cfg.Seed,
		Steps:      cfg.Steps,
		Labels:     labels,
		Params:     exp.Params(),
		Trajectory: tr,
	})
	if err != nil {
		return err
	}
	fmt.Printf("\nsaved: %s\n", runID)
	return nil
}

func phasePlane(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}
	a := newApp()
	defer a.flushMetrics()

	exp, err := a.newExperiment(cfg)
	if err != nil {
		return err
	}
	labels := dynamo.LabelsOf(exp.Model())

	res, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}

	var pp *export.PhasePlane
	if cfg.Slope != nil || exp.Model().StateDim() == 1 {
		pp = slopePlot(cfg, labels, res)
	} else {
		pp = statePlot(cfg, labels, res)
	}

	if outPath == "" {
		outPath = cfg.Name + ".svg"
	}
	if err := os.WriteFile(outPath, []byte(pp.SVG()), 0644); err != nil {
		return err
	}

	for i, run := range res.Runs {
		if run.Err != nil {
			fmt.Printf("run %d from %v: %v\n", i, run.Initial, run.Err)
		}
	}
	if exp.Model().StateDim() >= 2 && len(res.Runs) > 0 && res.Runs[0].Err == nil {
		portrait := analysis.NewPhasePortrait(res.Runs[0].Trajectory, 0, 1)
		fmt.Println(analysis.PhasePortraitToASCII(portrait, 60, 20, cfg.StopLimit()))
	}
	k := min(1, exp.Model().StateDim()-1)
	if cfg.Slope != nil {
		k = cfg.Slope.Component
	}
	var series [][]float64
	for _, run := range res.Runs {
		if run.Err == nil && run.Trajectory.Len() > 1 {
			series = append(series, run.Trajectory.Series(k))
		}
	}
	if plot := report.PlotMany(label(labels, k)+" across runs", series); plot != "" {
		fmt.Println(plot)
	}
	fmt.Printf("runs: %d  nullclines: %d  written: %s\n", len(res.Runs), len(res.Nullclines), outPath)
	return nil
}

// statePlot draws the first two configured axes of a multi-compartment
// model. A within_total stop condition is drawn as its boundary line.
func statePlot(cfg *config.Scenario, labels []string, res *experiment.Result) *export.PhasePlane {
	xi, yi := 0, 1
	if cfg.Field != nil && len(cfg.Field.Axes) >= 2 {
		xi, yi = cfg.Field.Axes[0].Component, cfg.Field.Axes[1].Component
	}
	pp := export.NewPhasePlane(width, height, label(labels, xi), label(labels, yi))
	pp.AddField(res.Field, xi, yi)

	if st := cfg.Stop; st != nil && st.Kind == config.StopWithinTotal {
		name := fmt.Sprintf("%s + %s = %g", label(labels, xi), label(labels, yi), st.Limit)
		pp.AddLine(name, []analysis.Point{{X: 0, Y: st.Limit}, {X: st.Limit, Y: 0}})
	}
	for _, nc := range res.Nullclines {
		if nc.Err == nil {
			pp.AddNullcline(fmt.Sprintf("d%s/dt = 0", label(labels, nc.Component)), nc.Curve)
		}
	}
	for i, run := range res.Runs {
		if run.Err == nil {
			pp.AddTrajectory(fmt.Sprintf("run %d from %v", i, run.Initial), run.Trajectory, xi, yi)
		}
	}
	return pp
}

// slopePlot draws a one-dimensional model in the (t, x) plane.
func slopePlot(cfg *config.Scenario, labels []string, res *experiment.Result) *export.PhasePlane {
	k := 0
	if cfg.Slope != nil {
		k = cfg.Slope.Component
	}
	pp := export.NewPhasePlane(width, height, "t", label(labels, k))
	pp.AddField(res.Field, 0, 1)

	tMin, tMax := 0.0, dynamo.Config{Dt: cfg.Dt, Steps: cfg.Steps}.Duration()
	if cfg.Slope != nil {
		tMin, tMax = cfg.Slope.T.Min, cfg.Slope.T.Max
	}
	for _, nc := range res.Nullclines {
		if nc.Err == nil {
			pp.AddLevels(label(labels, nc.Component), nc.Curve, tMin, tMax)
		}
	}
	for i, run := range res.Runs {
		if run.Err == nil {
			pp.AddTimeSeries(fmt.Sprintf("run %d", i), run.Trajectory, k)
		}
	}
	return pp
}

func label(labels []string, k int) string {
	if k >= 0 && k < len(labels) {
		return labels[k]
	}
	return "x" + strconv.Itoa(k)
}

func sampleField(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}
	a := newApp()
	exp, err := a.newExperiment(cfg)
	if err != nil {
		return err
	}

	grid, err := exp.Field()
	if err != nil {
		return err
	}
	if grid == nil {
		return fmt.Errorf("scenario %s defines no field or slope", cfg.Name)
	}

	w := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return report.GridCSV(w, dynamo.LabelsOf(exp.Model()), grid)
}

func computeNullclines(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}
	a := newApp()
	exp, err := a.newExperiment(cfg)
	if err != nil {
		return err
	}
	labels := dynamo.LabelsOf(exp.Model())

	ncs := exp.Nullclines()
	if len(ncs) == 0 {
		return fmt.Errorf("scenario %s defines no nullclines", cfg.Name)
	}
	failed := 0
	for _, nc := range ncs {
		fmt.Println(report.Title(fmt.Sprintf("d%s/dt = 0", label(labels, nc.Component))))
		if nc.Err != nil {
			failed++
			fmt.Printf("error: %v\n\n", nc.Err)
			continue
		}
		fmt.Printf("method: %s  points: %d\n", nc.Curve.Method, len(nc.Curve.Points))
		if nc.Curve.Empty() {
			fmt.Println("no crossing in domain")
		} else if err := report.Curve(os.Stdout, labels, nc.Curve); err != nil {
			return err
		}
		fmt.Println()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d nullclines failed", failed, len(ncs))
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}
	if cfg.Sweep == nil {
		return fmt.Errorf("scenario %s defines no sweep", cfg.Name)
	}
	a := newApp()
	defer a.flushMetrics()

	exp, err := a.newExperiment(cfg)
	if err != nil {
		return err
	}
	labels := dynamo.LabelsOf(exp.Model())

	points, err := exp.Sweep(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println(report.Title(fmt.Sprintf("%s: long-run %s against %s", cfg.Name, label(labels, cfg.Sweep.Component), cfg.Sweep.Param)))
	fmt.Print(analysis.SweepToASCII(points, 80, 20))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tVALUES\n", strings.ToUpper(cfg.Sweep.Param))
	for _, pt := range points {
		switch {
		case pt.Err != nil:
			fmt.Fprintf(w, "%.3f\terror: %v\n", pt.Value, pt.Err)
		case len(pt.Values) > 4:
			fmt.Fprintf(w, "%.3f\t%d distinct values\n", pt.Value, len(pt.Values))
		default:
			cells := make([]string, len(pt.Values))
			for i, v := range pt.Values {
				cells[i] = strconv.FormatFloat(report.Round3(v), 'f', -1, 64)
			}
			fmt.Fprintf(w, "%.3f\t%s\n", pt.Value, strings.Join(cells, " "))
		}
	}
	return w.Flush()
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
	fmt.Fprintln(w, "ID\tSCENARIO\tMODEL\tTIME\tDT\tSTEPS\tHALTED\tWARN")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%d\t%t\t%d\n",
			run.ID,
			run.Scenario,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Dt,
			run.Steps,
			run.Halted,
			run.Warnings,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d\n\n", len(states))
	fmt.Print(report.Plot(meta.Labels, states, 6))
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, times, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	if len(states) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := []string{"time"}
	for i := range states[0] {
		if i < len(meta.Labels) {
			header = append(header, meta.Labels[i])
		} else {
			header = append(header, "x"+strconv.Itoa(i))
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range states {
		row := []string{strconv.FormatFloat(times[i], 'f', 6, 64)}
		for _, val := range states[i] {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, tr, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	data := export.FromTrajectory(meta.Model, meta.Labels, dynamo.NewParams(meta.Params), tr)
	data.Scenario = meta.Scenario
	return export.ExportJSONStdout(data)
}
