package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"
)

type PlotOptions struct {
	Width   int
	Height  int
	Caption string
}

func DefaultPlotOptions() PlotOptions {
	return PlotOptions{Width: 80, Height: 10}
}

// Plot draws one series. Non-finite values are replaced by the previous
// finite value so a diverged tail stays visible as a flat line.
func Plot(data []float64, opts PlotOptions) (string, error) {
	clean, err := finite(data)
	if err != nil {
		return "", err
	}
	return asciigraph.Plot(clean, plotOptions(opts)...), nil
}

// PlotMany overlays several series of the same length, one colour each.
func PlotMany(series [][]float64, opts PlotOptions) (string, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("viz: nothing to plot")
	}
	clean := make([][]float64, len(series))
	for i, s := range series {
		c, err := finite(s)
		if err != nil {
			return "", err
		}
		clean[i] = c
	}
	colors := []asciigraph.AnsiColor{asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Yellow, asciigraph.Magenta, asciigraph.Cyan}
	o := append(plotOptions(opts), asciigraph.SeriesColors(colors[:min(len(clean), len(colors))]...))
	return asciigraph.PlotMany(clean, o...), nil
}

func plotOptions(opts PlotOptions) []asciigraph.Option {
	o := []asciigraph.Option{asciigraph.Height(opts.Height), asciigraph.Width(opts.Width)}
	if opts.Caption != "" {
		o = append(o, asciigraph.Caption(opts.Caption))
	}
	return o
}

func finite(data []float64) ([]float64, error) {
	out := make([]float64, len(data))
	last, seen := 0.0, false
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = last
			continue
		}
		if !seen {
			for j := 0; j < i; j++ {
				out[j] = v
			}
		}
		out[i], last, seen = v, v, true
	}
	if !seen {
		return nil, fmt.Errorf("viz: no finite values to plot")
	}
	return out, nil
}
