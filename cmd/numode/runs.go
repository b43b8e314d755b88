package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/numode/internal/analysis"
	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/viz"
)

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := newStore().List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tMETHOD\tTIME\tDURATION\tDT\tSTEPS\tRETRIES\tSTATUS")

	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%g\t%d\t%d\t%s\n",
			run.ID,
			run.Model,
			run.Method,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Steps,
			run.Retries,
			status,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, err := newStore().Load(args[0])
	if err != nil {
		return err
	}

	fmt.Println(viz.Header("run " + meta.ID))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "model\t%s\n", meta.Model)
	fmt.Fprintf(w, "method\t%s\n", meta.Method)
	fmt.Fprintf(w, "created\t%s\n", meta.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "dt\t%g\n", meta.Dt)
	fmt.Fprintf(w, "duration\t%g\n", meta.Duration)
	fmt.Fprintf(w, "y0\t%v\n", meta.Y0)
	fmt.Fprintf(w, "steps\t%d\n", meta.Steps)
	fmt.Fprintf(w, "retries\t%d\n", meta.Retries)
	fmt.Fprintf(w, "evaluations\t%d\n", meta.Evaluations)
	for _, k := range sortedKeys(meta.Params) {
		fmt.Fprintf(w, "param %s\t%g\n", k, meta.Params[k])
	}
	for _, k := range sortedKeys(meta.Newton) {
		fmt.Fprintf(w, "newton %s\t%s\n", k, meta.Newton[k])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if meta.Error != "" {
		fmt.Printf("\n%s %s\n", viz.Status("failed"), meta.Error)
	}
	printMetrics(meta.Metrics)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := newStore()
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	states, times, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s (%s)\n", meta.Model, meta.Method)
	fmt.Printf("samples: %d, t = %g..%g\n\n", len(states), times[0], times[len(times)-1])

	if plotOut != "" {
		return saveRunFigure(meta.ID, states, times)
	}

	if phase {
		portrait, err := analysis.NewPhasePortrait(states, xAxis, yAxis)
		if err != nil {
			return err
		}
		fmt.Printf("y%d vs y%d\n", yAxis, xAxis)
		fmt.Print(portrait.ASCII(80, 24))
		return nil
	}

	numVars := min(len(states[0]), 6)
	for varIdx := 0; varIdx < numVars; varIdx++ {
		data := make([]float64, len(states))
		for i := range states {
			data[i] = states[i][varIdx]
		}

		opts := viz.DefaultPlotOptions()
		opts.Caption = fmt.Sprintf("y%d vs time", varIdx)
		graph, err := viz.Plot(data, opts)
		if err != nil {
			return fmt.Errorf("y%d: %w", varIdx, err)
		}
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func saveRunFigure(runID string, states []dynamo.State, times []float64) error {
	fig := viz.Figure{Title: runID, XLabel: "t", YLabel: "y"}
	if phase {
		portrait, err := analysis.NewPhasePortrait(states, xAxis, yAxis)
		if err != nil {
			return err
		}
		xs := make([]float64, len(portrait.Points))
		ys := make([]float64, len(portrait.Points))
		for i, pt := range portrait.Points {
			xs[i], ys[i] = pt.X, pt.Y
		}
		fig.XLabel = fmt.Sprintf("y%d", xAxis)
		fig.YLabel = fmt.Sprintf("y%d", yAxis)
		fig.Series = []viz.Series{{X: xs, Y: ys}}
	} else {
		for v := range states[0] {
			col := make([]float64, len(states))
			for i := range states {
				col[i] = states[i][v]
			}
			fig.Series = append(fig.Series, viz.Series{Name: fmt.Sprintf("y%d", v), X: times, Y: col})
		}
	}
	if err := viz.SaveFigure(plotOut, fig); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", plotOut)
	return nil
}
