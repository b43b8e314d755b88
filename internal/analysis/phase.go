package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/numode/internal/dynamo"
)

type Point struct{ X, Y float64 }

// PhasePortrait2D is a projection of a trajectory onto two variables.
type PhasePortrait2D struct {
	XIndex, YIndex int
	Points         []Point
}

// NewPhasePortrait projects recorded states onto variables xIdx and yIdx.
// Non-finite states are skipped.
func NewPhasePortrait(states []dynamo.State, xIdx, yIdx int) (*PhasePortrait2D, error) {
	portrait := &PhasePortrait2D{XIndex: xIdx, YIndex: yIdx, Points: make([]Point, 0, len(states))}
	for k, y := range states {
		if xIdx < 0 || yIdx < 0 || xIdx >= len(y) || yIdx >= len(y) {
			return nil, fmt.Errorf("analysis: state %d has %d variables, want indices %d and %d", k, len(y), xIdx, yIdx)
		}
		x, v := y[xIdx], y[yIdx]
		if math.IsNaN(x) || math.IsNaN(v) || math.IsInf(x, 0) || math.IsInf(v, 0) {
			continue
		}
		portrait.Points = append(portrait.Points, Point{X: x, Y: v})
	}
	return portrait, nil
}

// Bounds returns the extent of the points.
func (p *PhasePortrait2D) Bounds() (minX, maxX, minY, maxY float64) {
	if len(p.Points) == 0 {
		return 0, 0, 0, 0
	}
	minX, maxX = p.Points[0].X, p.Points[0].X
	minY, maxY = p.Points[0].Y, p.Points[0].Y
	for _, pt := range p.Points {
		minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
		minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
	}
	return minX, maxX, minY, maxY
}

// ASCII renders the portrait on a width×height grid with 10% padding,
// drawing the axes when they are in view.
func (p *PhasePortrait2D) ASCII(width, height int) string {
	if len(p.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX, minY, maxY := p.Bounds()
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	col := func(x float64) int { return int((x - minX) / rangeX * float64(width-1)) }
	row := func(y float64) int { return height - 1 - int((y-minY)/rangeY*float64(height-1)) }

	if minX <= 0 && maxX >= 0 {
		c := col(0)
		for r := 0; r < height; r++ {
			canvas[r][c] = '│'
		}
	}
	if minY <= 0 && maxY >= 0 {
		r := row(0)
		for c := 0; c < width; c++ {
			if canvas[r][c] == '│' {
				canvas[r][c] = '┼'
			} else {
				canvas[r][c] = '─'
			}
		}
	}
	for _, pt := range p.Points {
		canvas[row(pt.Y)][col(pt.X)] = '•'
	}

	var sb strings.Builder
	for _, r := range canvas {
		sb.WriteString(strings.TrimRight(string(r), " "))
		sb.WriteRune('\n')
	}
	return sb.String()
}
