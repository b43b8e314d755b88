package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/history"
	"github.com/san-kum/numode/internal/integrators"
)

// LyapunovExponent estimates the largest Lyapunov exponent by following
// a reference trajectory and one displaced by d0 in the first variable.
// After every step the separation is logged and the displaced history is
// pulled back to distance d0 along the current separation, slot by slot.
// A positive value indicates chaos.
func LyapunovExponent(sys dynamo.System, newStepper func() integrators.Stepper, y0 dynamo.State, dt, duration, d0 float64) (float64, error) {
	if len(y0) == 0 || d0 <= 0 || dt <= 0 {
		return 0, fmt.Errorf("analysis: need a non-empty state and positive dt, d0")
	}

	ref, pert := newStepper(), newStepper()
	depth := ref.HistoryDepth()

	yp := y0.Clone()
	yp[0] += d0
	hr, err := history.NewWithInitial(y0, depth)
	if err != nil {
		return 0, err
	}
	hp, err := history.NewWithInitial(yp, depth)
	if err != nil {
		return 0, err
	}

	steps := int(math.Round(duration / dt))
	sumLog := 0.0
	for k := 0; k < steps; k++ {
		t := float64(k) * dt
		if err := ref.Step(sys, dt, t, hr); err != nil {
			return 0, err
		}
		if err := pert.Step(sys, dt, t, hp); err != nil {
			return 0, err
		}

		a, _ := hr.Slot(0)
		b, _ := hp.Slot(0)
		sep := 0.0
		for i := range a {
			sep += (b[i] - a[i]) * (b[i] - a[i])
		}
		sep = math.Sqrt(sep)
		if sep == 0 || math.IsNaN(sep) || math.IsInf(sep, 0) {
			return 0, fmt.Errorf("analysis: separation %g at step %d", sep, k+1)
		}
		sumLog += math.Log(sep / d0)

		scale := d0 / sep
		for slot := 0; slot < min(hr.Filled(), hp.Filled()); slot++ {
			rr, _ := hr.Row(slot)
			rp, _ := hp.Row(slot)
			x, xp := rr.Data(), rp.Data()
			for i := range xp {
				xp[i] = x[i] + (xp[i]-x[i])*scale
			}
		}
	}

	if steps == 0 {
		return 0, nil
	}
	return sumLog / (float64(steps) * dt), nil
}
