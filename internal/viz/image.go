package viz

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

type Series struct {
	Name string
	X, Y []float64
}

// Figure describes a line chart written by SaveFigure. The file format
// follows the extension of the path (.png, .svg, .pdf, ...).
type Figure struct {
	Title          string
	XLabel, YLabel string
	LogX, LogY     bool
	Series         []Series
}

// SaveFigure renders fig to path at 6×4 inches. Points that are not finite,
// or not positive on a log axis, are dropped.
func SaveFigure(path string, fig Figure) error {
	if len(fig.Series) == 0 {
		return fmt.Errorf("viz: nothing to plot")
	}

	p := plot.New()
	p.Title.Text = fig.Title
	p.X.Label.Text = fig.XLabel
	p.Y.Label.Text = fig.YLabel
	if fig.LogX {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	if fig.LogY {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	drawn := 0
	for i, s := range fig.Series {
		if len(s.X) != len(s.Y) {
			return fmt.Errorf("viz: series %q has %d x and %d y values", s.Name, len(s.X), len(s.Y))
		}
		pts := make(plotter.XYs, 0, len(s.X))
		for k := range s.X {
			x, y := s.X[k], s.Y[k]
			if !usable(x, fig.LogX) || !usable(y, fig.LogY) {
				continue
			}
			pts = append(pts, plotter.XY{X: x, Y: y})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		if s.Name != "" {
			p.Legend.Add(s.Name, line)
		}
		drawn++
	}
	if drawn == 0 {
		return fmt.Errorf("viz: no plottable points")
	}

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

func usable(v float64, log bool) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return !log || v > 0
}
