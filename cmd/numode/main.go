package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/numode/internal/config"
	"github.com/san-kum/numode/internal/experiment"
)

var (
	dataDir string
	verbose bool

	method      string
	dt          float64
	duration    float64
	y0          []float64
	params      map[string]string
	pinned      []int
	every       int
	maxHalvings int
	configFile  string
	preset      string
	noSave      bool

	absTol  float64
	relTol  float64
	mode    string
	norm    string
	maxIter int
	reuse   bool

	adaptive    bool
	tol         float64
	minDt       float64
	maxDt       float64
	stepControl string

	corrections      int
	correctorTol     float64
	fixedCorrections bool

	orderMethod string
	orderTime   float64
	h0          float64
	levels      int
	orderOut    string

	lyapMethod string
	lyapDt     float64
	lyapTime   float64

	xAxis   int
	yAxis   int
	phase   bool
	plotOut string
)

var logger = slog.New(slog.DiscardHandler)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "numode",
		Short:         "implicit ODE integration lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".numode", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log solver iterations and retries to stderr")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "integrate a model and store the run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&method, "method", "bdf2", "integration method (see numode methods)")
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "step size")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "integration interval")
	runCmd.Flags().Float64SliceVar(&y0, "y0", nil, "initial value (default: model default)")
	runCmd.Flags().StringToStringVar(&params, "param", nil, "model parameter, e.g. --param mu=100")
	runCmd.Flags().IntSliceVar(&pinned, "pin", nil, "variables held at their initial value")
	runCmd.Flags().IntVar(&every, "every", 1, "record one state every N steps")
	runCmd.Flags().IntVar(&maxHalvings, "max-halvings", config.DefaultMaxHalvings, "step halvings allowed when Newton fails")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&adaptive, "adaptive", false, "let rk45/rkf45 choose step sizes from their error estimate")
	runCmd.Flags().Float64Var(&tol, "tol", config.DefaultTolerance, "adaptive local error tolerance")
	runCmd.Flags().Float64Var(&minDt, "min-dt", config.DefaultMinDt, "smallest adaptive step")
	runCmd.Flags().Float64Var(&maxDt, "max-dt", 0, "largest adaptive step (0: whole interval)")
	runCmd.Flags().StringVar(&stepControl, "step-control", "proportional", "adaptive step control: proportional, half_double")
	runCmd.Flags().IntVar(&corrections, "corrections", 0, "predictor-corrector iteration cap (0: method default)")
	runCmd.Flags().Float64Var(&correctorTol, "corrector-tol", 0, "predictor-corrector tolerance (0: method default)")
	runCmd.Flags().BoolVar(&fixedCorrections, "fixed-corrections", false, "always apply the full number of corrections")
	addNewtonFlags(runCmd)

	orderCmd := &cobra.Command{
		Use:   "order [model]",
		Short: "measure the convergence order of a method against a closed-form solution",
		Args:  cobra.ExactArgs(1),
		RunE:  runOrder,
	}
	orderCmd.Flags().StringVar(&orderMethod, "method", "bdf2", "method")
	orderCmd.Flags().Float64Var(&orderTime, "time", 1.0, "integration interval")
	orderCmd.Flags().Float64Var(&h0, "h0", 0.1, "largest step")
	orderCmd.Flags().IntVar(&levels, "levels", 5, "number of step sizes")
	orderCmd.Flags().StringVar(&orderOut, "out", "", "also write a log-log error plot (.png, .svg, .pdf)")
	addNewtonFlags(orderCmd)

	lyapunovCmd := &cobra.Command{
		Use:   "lyapunov [model]",
		Short: "estimate the largest Lyapunov exponent",
		Args:  cobra.ExactArgs(1),
		RunE:  runLyapunov,
	}
	lyapunovCmd.Flags().StringVar(&lyapMethod, "method", "rk4", "method")
	lyapunovCmd.Flags().Float64Var(&lyapDt, "dt", 0.01, "step size")
	lyapunovCmd.Flags().Float64Var(&lyapTime, "time", 100.0, "integration interval")
	addNewtonFlags(lyapunovCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata and metrics",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().BoolVar(&phase, "phase", false, "draw a phase portrait instead of time series")
	plotCmd.Flags().IntVar(&xAxis, "x-axis", 0, "state index for x-axis")
	plotCmd.Flags().IntVar(&yAxis, "y-axis", 1, "state index for y-axis")
	plotCmd.Flags().StringVar(&plotOut, "out", "", "write the plot to an image file instead (.png, .svg, .pdf)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newStore().ExportJSON(os.Stdout, args[0])
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newStore().Delete(args[0])
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	methodsCmd := &cobra.Command{
		Use:   "methods",
		Short: "list integration methods",
		Run: func(cmd *cobra.Command, args []string) {
			for _, m := range experiment.NewRegistry().ListMethods() {
				fmt.Println(m)
			}
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models",
		Run: func(cmd *cobra.Command, args []string) {
			for _, m := range experiment.NewRegistry().ListModels() {
				fmt.Println(m)
			}
		},
	}

	luCmd := &cobra.Command{
		Use:   "lu",
		Short: "factorise a fixed matrix and solve for two right-hand sides",
		RunE:  luDemo,
	}

	newtonCmd := &cobra.Command{
		Use:   "newton",
		Short: "solve y² = 2 with Newton's method",
		RunE:  newtonDemo,
	}
	addNewtonFlags(newtonCmd)

	rootCmd.AddCommand(runCmd, orderCmd, lyapunovCmd, listCmd, showCmd, plotCmd, exportJSONCmd, deleteCmd,
		presetsCmd, methodsCmd, modelsCmd, luCmd, newtonCmd)
	return rootCmd
}

func addNewtonFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&absTol, "abs-tol", 0, "Newton absolute tolerance (default: method default)")
	cmd.Flags().Float64Var(&relTol, "rel-tol", 0, "Newton relative tolerance")
	cmd.Flags().StringVar(&mode, "mode", "", "tolerance mode: absolute or relative")
	cmd.Flags().StringVar(&norm, "norm", "", "residual norm: inf or 2")
	cmd.Flags().IntVar(&maxIter, "max-iter", 0, "Newton iteration cap")
	cmd.Flags().BoolVar(&reuse, "reuse-jacobian", false, "factorise the Jacobian once per step")
}
