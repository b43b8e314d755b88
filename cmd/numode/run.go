package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/numode/internal/analysis"
	"github.com/san-kum/numode/internal/config"
	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/experiment"
	"github.com/san-kum/numode/internal/integrators"
	"github.com/san-kum/numode/internal/newton"
	"github.com/san-kum/numode/internal/storage"
	"github.com/san-kum/numode/internal/viz"
)

// buildConfig layers defaults, then a preset, then a config file, then any
// flag the user set explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Model = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Model))
		}
		cfg = p
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if len(args) > 0 && fileCfg.Model != args[0] {
			return nil, fmt.Errorf("config file is for model %s, not %s", fileCfg.Model, args[0])
		}
		cfg = fileCfg
	}

	flags := cmd.Flags()
	if flags.Changed("method") || (preset == "" && configFile == "") {
		cfg.Method = method
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("y0") {
		cfg.Y0 = y0
	}
	if flags.Changed("pin") {
		cfg.Pinned = pinned
	}
	if flags.Changed("every") {
		cfg.Every = every
	}
	if flags.Changed("max-halvings") {
		cfg.MaxHalvings = maxHalvings
	}
	if flags.Changed("param") {
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64)
		}
		for k, v := range params {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("param %s: %w", k, err)
			}
			cfg.Params[k] = f
		}
	}
	applyNewtonFlags(cmd, &cfg.Newton)
	applyAdaptiveFlags(cmd, cfg)
	if flags.Changed("corrections") {
		cfg.Corrector.MaxIterations = corrections
	}
	if flags.Changed("corrector-tol") {
		cfg.Corrector.Tolerance = correctorTol
	}
	if flags.Changed("fixed-corrections") {
		cfg.Corrector.Fixed = fixedCorrections
	}

	return cfg, cfg.Validate()
}

// applyAdaptiveFlags turns adaptive stepping on when --adaptive or any of
// its settings is given, and off with --adaptive=false.
func applyAdaptiveFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("adaptive") && !adaptive {
		cfg.Adaptive = nil
		return
	}
	set := flags.Changed("adaptive")
	for _, name := range []string{"tol", "min-dt", "max-dt", "step-control"} {
		set = set || flags.Changed(name)
	}
	if !set {
		return
	}
	if cfg.Adaptive == nil {
		cfg.Adaptive = config.DefaultAdaptive()
	}
	a := cfg.Adaptive
	if flags.Changed("tol") {
		a.Tolerance = tol
	}
	if flags.Changed("min-dt") {
		a.MinDt = minDt
	}
	if flags.Changed("max-dt") {
		a.MaxDt = maxDt
	}
	if flags.Changed("step-control") {
		a.Control = stepControl
	}
}

func applyNewtonFlags(cmd *cobra.Command, n *config.NewtonConfig) {
	flags := cmd.Flags()
	if flags.Changed("abs-tol") {
		n.AbsTol = absTol
	}
	if flags.Changed("rel-tol") {
		n.RelTol = relTol
	}
	if flags.Changed("mode") {
		n.Mode = mode
	}
	if flags.Changed("norm") {
		n.Norm = norm
	}
	if flags.Changed("max-iter") {
		n.MaxIterations = maxIter
	}
	if flags.Changed("reuse-jacobian") {
		n.ReuseJacobian = reuse
	}
}

func newStore() *storage.Store { return storage.New(dataDir) }

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg, nil).WithLogger(logger)
	if err := exp.Setup(); err != nil {
		return err
	}

	fmt.Printf("running %s with %s...\n", cfg.Model, cfg.Method)
	start := time.Now()
	result, runErr := exp.Run(context.Background())
	elapsed := time.Since(start)

	var simErr *dynamo.SimulationError
	if runErr != nil && !errors.As(runErr, &simErr) {
		return runErr
	}

	status := "completed"
	if runErr != nil {
		status = "failed"
	}
	fmt.Printf("%s in %v\n", viz.Status(status), elapsed)

	if !noSave {
		st := newStore()
		if err := st.Init(); err != nil {
			return err
		}
		meta := storage.RunMetadata{
			Model:    cfg.Model,
			Method:   cfg.Method,
			Dt:       cfg.Dt,
			Duration: cfg.Duration,
			Y0:       cfg.InitialState(exp.Model().DefaultState()),
			Params:   cfg.Params,
			Newton:   newtonSummary(exp.Stepper()),
			Adaptive: cfg.Adaptive != nil,
		}
		if runErr != nil {
			meta.Error = runErr.Error()
		}
		runID, err := st.Save(meta, result)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	fmt.Printf("steps: %d  retries: %d  evaluations: %d\n", result.StepsTaken, result.Retries, result.Evaluations)
	if cfg.Adaptive != nil {
		fmt.Printf("rejected: %d\n", result.Rejected)
	}
	printMetrics(result.Metrics)
	if final := result.Final(); final != nil {
		fmt.Printf("final state: %v\n", final)
	}
	return runErr
}

func newtonSummary(s integrators.Stepper) map[string]string {
	nt, ok := s.(experiment.NewtonTunable)
	if !ok {
		return nil
	}
	o := nt.Newton().Options()
	return map[string]string{
		"abs_tol":        strconv.FormatFloat(o.AbsTol, 'g', -1, 64),
		"rel_tol":        strconv.FormatFloat(o.RelTol, 'g', -1, 64),
		"mode":           o.Mode.String(),
		"norm":           o.Norm.String(),
		"max_iterations": strconv.Itoa(o.MaxIterations),
		"reuse_jacobian": strconv.FormatBool(o.ReuseJacobian),
	}
}

func printMetrics(metrics map[string]float64) {
	if len(metrics) == 0 {
		return
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s\n", viz.Metric(name, metrics[name]))
	}
}

// stepperFactory resolves a method once and applies Newton overrides to
// every stepper it hands out.
func stepperFactory(cmd *cobra.Command, registry *experiment.Registry, name string) (func() integrators.Stepper, error) {
	if _, err := registry.GetStepper(name); err != nil {
		return nil, err
	}
	var n config.NewtonConfig
	applyNewtonFlags(cmd, &n)
	cfg := &config.Config{Newton: n}
	if _, err := cfg.NewtonOptions(newton.DefaultOptions()); err != nil {
		return nil, err
	}

	return func() integrators.Stepper {
		s, _ := registry.GetStepper(name)
		if nt, ok := s.(experiment.NewtonTunable); ok {
			if opts, err := cfg.NewtonOptions(nt.Newton().Options()); err == nil {
				opts.Logger = logger
				nt.SetNewtonOptions(opts)
			}
		}
		return s
	}, nil
}

func runOrder(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()
	model, err := registry.GetModel(args[0])
	if err != nil {
		return err
	}
	factory, err := stepperFactory(cmd, registry, orderMethod)
	if err != nil {
		return err
	}

	study, err := analysis.ConvergenceOrder(context.Background(), model, factory, analysis.OrderConfig{
		Duration: orderTime,
		H0:       h0,
		Levels:   levels,
	})
	if err != nil {
		return err
	}

	fmt.Println(viz.Header(fmt.Sprintf("convergence of %s on %s, t = %g", study.Method, args[0], orderTime)))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "H\tERROR\tORDER")
	errs := make([]float64, len(study.Points))
	for i, p := range study.Points {
		errs[i] = p.Error
		order := "-"
		if i > 0 {
			order = fmt.Sprintf("%.3f", p.Order)
		}
		fmt.Fprintf(w, "%g\t%.3e\t%s\n", p.H, p.Error, order)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nerror %s\n", viz.Sparkline(errs, len(errs), true))
	fmt.Println(viz.Metric("estimated order", study.Estimated))

	if orderOut == "" {
		return nil
	}
	hs := make([]float64, len(study.Points))
	for i, p := range study.Points {
		hs[i] = p.H
	}
	if err := viz.SaveFigure(orderOut, viz.Figure{
		Title:  fmt.Sprintf("%s on %s", study.Method, args[0]),
		XLabel: "h",
		YLabel: "error at t end",
		LogX:   true,
		LogY:   true,
		Series: []viz.Series{{Name: study.Method, X: hs, Y: errs}},
	}); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", orderOut)
	return nil
}

func runLyapunov(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()
	model, err := registry.GetModel(args[0])
	if err != nil {
		return err
	}
	factory, err := stepperFactory(cmd, registry, lyapMethod)
	if err != nil {
		return err
	}

	lambda, err := analysis.LyapunovExponent(model, factory, model.DefaultState(), lyapDt, lyapTime, 1e-8)
	if err != nil {
		return err
	}
	fmt.Println(viz.Metric("largest lyapunov exponent", lambda))
	if lambda > 0.01 {
		fmt.Println(viz.StatusWarn.Render("chaotic"))
	}
	return nil
}
