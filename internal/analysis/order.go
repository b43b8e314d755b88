package analysis

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/integrators"
	"github.com/san-kum/numode/internal/sim"
)

type OrderConfig struct {
	// Duration is the integration interval, starting at t = 0.
	Duration float64
	// H0 is the largest step; each level halves it.
	H0     float64
	Levels int
	// Y0 overrides the model's default state.
	Y0      dynamo.State
	Workers int
}

type OrderPoint struct {
	H     float64
	Error float64
	// Order is log2 of the error ratio to the previous level, NaN on the
	// first level.
	Order float64
}

type OrderStudy struct {
	Method string
	Points []OrderPoint
	// Estimated is the slope of log(error) against log(h), NaN when fewer
	// than two levels have a non-zero error.
	Estimated float64
}

// ConvergenceOrder integrates model once per level and compares the final
// state with its closed-form solution. model is shared between the
// concurrent runs, so its Derive must not mutate it.
func ConvergenceOrder(ctx context.Context, model dynamo.Model, newStepper func() integrators.Stepper, cfg OrderConfig) (*OrderStudy, error) {
	exact, ok := model.(dynamo.Exact)
	if !ok {
		return nil, fmt.Errorf("analysis: %T has no closed-form solution", model)
	}
	if cfg.Levels < 2 {
		return nil, fmt.Errorf("analysis: need at least 2 levels, got %d", cfg.Levels)
	}
	if cfg.H0 <= 0 || cfg.Duration <= 0 {
		return nil, fmt.Errorf("analysis: h0 and duration must be positive")
	}

	y0 := cfg.Y0
	if len(y0) == 0 {
		y0 = model.DefaultState()
	}

	ens := sim.NewEnsemble(cfg.Workers)
	method := ""
	for k := 0; k < cfg.Levels; k++ {
		h := cfg.H0 / math.Pow(2, float64(k))
		stepper := newStepper()
		method = stepper.Name()
		ens.Add(sim.Job{
			Name:    fmt.Sprintf("h=%g", h),
			System:  model,
			Stepper: stepper,
			Y0:      y0.Clone(),
			Config:  sim.Config{Dt: h, Duration: cfg.Duration, ValidateState: true},
		})
	}

	results, err := ens.Run(ctx)
	if err != nil {
		return nil, err
	}

	want := dynamo.State(exact.Solution(cfg.Duration, y0))
	study := &OrderStudy{Method: method, Points: make([]OrderPoint, len(results))}
	var logH, logErr []float64
	for k, res := range results {
		p := OrderPoint{
			H:     cfg.H0 / math.Pow(2, float64(k)),
			Error: res.Final().MaxAbsDiff(want),
			Order: math.NaN(),
		}
		if k > 0 && p.Error > 0 {
			p.Order = math.Log2(study.Points[k-1].Error / p.Error)
		}
		if p.Error > 0 {
			logH = append(logH, math.Log(p.H))
			logErr = append(logErr, math.Log(p.Error))
		}
		study.Points[k] = p
	}

	study.Estimated = math.NaN()
	if len(logH) >= 2 {
		_, study.Estimated = stat.LinearRegression(logH, logErr, nil, false)
	}
	return study, nil
}
