package integrators

import (
	"log/slog"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/history"
	"github.com/san-kum/numode/internal/linalg"
	"github.com/san-kum/numode/internal/newton"
	"github.com/san-kum/numode/internal/residual"
)

// implicit runs one Newton solve per step. A stepper owns its schemes and
// solver; do not share one across goroutines.
type implicit struct {
	name      string
	depth     int
	scheme    *residual.Scheme
	bootstrap *residual.Scheme
	solver    *newton.Solver
	guess     *Euler
	last      newton.Result
}

func newImplicit(name string, depth int, scheme, bootstrap *residual.Scheme, opts newton.Options) implicit {
	return implicit{
		name:      name,
		depth:     depth,
		scheme:    scheme,
		bootstrap: bootstrap,
		solver:    newton.New(opts),
		guess:     NewEuler(),
	}
}

func (s *implicit) Name() string      { return s.name }
func (s *implicit) HistoryDepth() int { return s.depth }

// Newton exposes the solver so callers can adjust tolerances.
func (s *implicit) Newton() *newton.Solver { return s.solver }

// SetNewtonOptions replaces the solver options.
func (s *implicit) SetNewtonOptions(opts newton.Options) { s.solver.SetOptions(opts) }

func (s *implicit) logger() *slog.Logger {
	if l := s.solver.Options().Logger; l != nil {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// LastResult reports the Newton solve of the most recent Step.
func (s *implicit) LastResult() newton.Result { return s.last }

// Evaluations counts right-hand-side evaluations made by the residuals.
func (s *implicit) Evaluations() int {
	n := s.scheme.Evaluations()
	if s.bootstrap != nil {
		n += s.bootstrap.Evaluations()
	}
	return n
}

// Step seeds Newton with a forward Euler prediction, solves the scheme's
// residual for the value at t+h and commits it on convergence.
func (s *implicit) Step(sys dynamo.System, h, t float64, hist *history.History) error {
	if err := checkHistory(s.name, sys, hist, s.depth); err != nil {
		return err
	}

	scheme := s.scheme
	if hist.Filled() < scheme.RequiredHistory() {
		if s.bootstrap == nil {
			return dynamo.Errorf(dynamo.KindInsufficientHistory, s.name+".Step",
				"%d of %d past values available", hist.Filled(), scheme.RequiredHistory())
		}
		scheme = s.bootstrap
	}

	yn, err := hist.Row(0)
	if err != nil {
		return err
	}
	mask := hist.PinMask()
	y := linalg.NewVector(yn.Len())
	s.guess.Predict(sys, h, t, yn.Data(), y.Data())
	for i, p := range mask {
		if p {
			y.Data()[i] = yn.Data()[i]
		}
	}

	if err := scheme.Bind(residual.Context{System: sys, H: h, T: t, History: hist, Target: 0}); err != nil {
		return err
	}
	defer scheme.Unbind()

	s.last, err = s.solver.Solve(scheme, y, mask)
	if err != nil {
		s.logger().Debug("implicit step failed",
			slog.String("method", s.name),
			slog.Float64("t", t),
			slog.Float64("h", h),
			slog.String("status", s.last.Status.String()))
		return err
	}
	return Commit(hist, y.Data())
}

// BackwardEuler is the first-order implicit Euler method.
type BackwardEuler struct {
	implicit
}

func NewBackwardEuler() *BackwardEuler {
	return &BackwardEuler{newImplicit("backward_euler", 1, residual.NewBackwardEuler(), nil, newton.DefaultOptions())}
}

// BDF2 is the two-step backward differentiation formula. With fewer than two
// stored values it takes a trapezoidal step instead, which keeps the start-up
// step second order.
type BDF2 struct {
	implicit
}

func NewBDF2() *BDF2 {
	return &BDF2{newImplicit("bdf2", 2, residual.NewBDF2(), residual.NewAdamsMoulton2(), newton.DefaultOptions())}
}

// AdamsMoulton2 is the trapezoidal rule. Its Newton solve uses an absolute
// tolerance only by default.
type AdamsMoulton2 struct {
	implicit
}

func NewAdamsMoulton2() *AdamsMoulton2 {
	opts := newton.DefaultOptions()
	opts.Mode = newton.AbsoluteOnly
	return &AdamsMoulton2{newImplicit("adams_moulton_2", 2, residual.NewAdamsMoulton2(), nil, opts)}
}
