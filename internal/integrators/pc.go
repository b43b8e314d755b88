package integrators

import (
	"math"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/history"
)

// PredictorCorrector predicts with forward Euler and then applies an
// implicit formula as a fixed-point correction, so it needs no Jacobian and
// no linear solve. It only converges when h·L is small, L being the
// Lipschitz constant of f.
type PredictorCorrector struct {
	name      string
	trapezoid bool

	// MaxIterations caps the corrections per step.
	MaxIterations int
	// Tolerance bounds the change between two corrections, relative to
	// max(|y_i|, 1).
	Tolerance float64
	// FixedIterations applies MaxIterations corrections and accepts the
	// result without a convergence test.
	FixedIterations bool

	fn, fp []float64
	evals  int
	iters  int
}

const (
	DefaultCorrections        = 10
	DefaultCorrectorTolerance = 1e-8
)

// NewBackwardEulerPC corrects with y = y_n + h f(t+h, y).
func NewBackwardEulerPC() *PredictorCorrector {
	return &PredictorCorrector{name: "backward_euler_pc", MaxIterations: DefaultCorrections, Tolerance: DefaultCorrectorTolerance}
}

// NewAdamsMoulton2PC corrects with the trapezoidal rule.
func NewAdamsMoulton2PC() *PredictorCorrector {
	return &PredictorCorrector{name: "adams_moulton_2_pc", trapezoid: true, MaxIterations: DefaultCorrections, Tolerance: DefaultCorrectorTolerance}
}

func (p *PredictorCorrector) Name() string      { return p.name }
func (p *PredictorCorrector) HistoryDepth() int { return 1 }
func (p *PredictorCorrector) Evaluations() int  { return p.evals }

// Iterations is the number of corrections the last step applied.
func (p *PredictorCorrector) Iterations() int { return p.iters }

func (p *PredictorCorrector) Step(sys dynamo.System, h, t float64, hist *history.History) error {
	if err := checkHistory(p.name, sys, hist, 1); err != nil {
		return err
	}
	row, err := hist.Row(0)
	if err != nil {
		return err
	}
	yn := row.Data()
	n := len(yn)
	if len(p.fn) != n {
		p.fn = make([]float64, n)
		p.fp = make([]float64, n)
	}
	mask := hist.PinMask()

	sys.Derive(t, yn, p.fn)
	p.evals++
	y := make([]float64, n)
	for i := range y {
		y[i] = yn[i]
		if !mask[i] {
			y[i] += h * p.fn[i]
		}
	}

	change := math.Inf(1)
	for p.iters = 1; p.iters <= p.MaxIterations; p.iters++ {
		sys.Derive(t+h, y, p.fp)
		p.evals++
		change = 0
		for i := range y {
			if mask[i] {
				continue
			}
			next := yn[i] + h*p.fp[i]
			if p.trapezoid {
				next = yn[i] + 0.5*h*(p.fp[i]+p.fn[i])
			}
			change = math.Max(change, math.Abs(next-y[i])/math.Max(math.Abs(next), 1))
			y[i] = next
		}
		if math.IsNaN(change) || math.IsInf(change, 0) {
			return dynamo.Errorf(dynamo.KindDiverged, p.name+".Step", "correction is not finite at t=%g", t+h)
		}
		if !p.FixedIterations && change <= p.Tolerance {
			return Commit(hist, y)
		}
	}
	p.iters = p.MaxIterations
	if p.FixedIterations {
		return Commit(hist, y)
	}
	return dynamo.Errorf(dynamo.KindMaxIterationsExceeded, p.name+".Step",
		"correction still %g after %d iterations", change, p.MaxIterations)
}
