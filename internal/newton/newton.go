// Package newton solves F(y) = 0 by Newton-Raphson iteration, taking F and
// its Jacobian from a residual.Strategy and the linear solve from a
// linsolve.Solver.
package newton

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/linalg"
	"github.com/san-kum/numode/internal/linsolve"
	"github.com/san-kum/numode/internal/residual"
)

// Status is the state of the most recent solve.
type Status int

const (
	Initialized Status = iota
	Iterating
	Converged
	MaxIterationsExceeded
	Diverged
)

func (s Status) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case MaxIterationsExceeded:
		return "max iterations exceeded"
	case Diverged:
		return "diverged"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result reports one solve. Y is the last iterate, converged or not.
type Result struct {
	Status       Status
	Iterations   int
	ResidualNorm float64
	Tolerance    float64
	Y            *linalg.Vector
}

// Solver holds options and a linear solver between calls. It is not safe
// for concurrent use.
type Solver struct {
	opts   Options
	linear linsolve.Solver
	log    *slog.Logger
	status Status
}

func New(opts Options) *Solver {
	return NewWithLinearSolver(opts, linsolve.NewLU())
}

func NewWithLinearSolver(opts Options, ls linsolve.Solver) *Solver {
	s := &Solver{linear: ls}
	s.SetOptions(opts)
	return s
}

func (s *Solver) Options() Options { return s.opts }

func (s *Solver) SetOptions(opts Options) {
	s.opts = opts
	s.log = opts.Logger
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
}

// Status returns the outcome of the last Solve.
func (s *Solver) Status() Status { return s.status }

func (s *Solver) norm(v *linalg.Vector) float64 {
	if s.opts.Norm == Norm2 {
		return v.Norm2()
	}
	return v.NormInf()
}

// residual evaluates F(y) with pinned rows zeroed and returns its norm.
func (s *Solver) residual(st residual.Strategy, y *linalg.Vector, mask []bool) (*linalg.Vector, float64, error) {
	f, err := st.Residual(y)
	if err != nil {
		return nil, 0, err
	}
	if f.Len() != y.Len() {
		return nil, 0, dynamo.Errorf(dynamo.KindDimensionMismatch, "newton.Solve", "residual has %d entries for %d unknowns", f.Len(), y.Len())
	}
	d := f.Data()
	for i, p := range mask {
		if p {
			d[i] = 0
		}
	}
	return f, s.norm(f), nil
}

// jacobian evaluates ∂F/∂y and replaces pinned rows by identity rows.
func (s *Solver) jacobian(st residual.Strategy, y *linalg.Vector, mask []bool) (*linalg.Matrix, error) {
	j, err := st.Jacobian(y)
	if err != nil {
		return nil, err
	}
	n := y.Len()
	if j.Rows() != n || j.Cols() != n {
		return nil, dynamo.Errorf(dynamo.KindDimensionMismatch, "newton.Solve", "jacobian is %dx%d for %d unknowns", j.Rows(), j.Cols(), n)
	}
	d := j.Data()
	for i, p := range mask {
		if !p {
			continue
		}
		row := d[i*n : (i+1)*n]
		for k := range row {
			row[k] = 0
		}
		row[i] = 1
	}
	return j, nil
}

func (s *Solver) fail(status Status, res Result, kind dynamo.Kind, format string, args ...any) (Result, error) {
	s.status = status
	res.Status = status
	s.log.Debug("newton stopped",
		slog.String("status", status.String()),
		slog.Int("iterations", res.Iterations),
		slog.Float64("residual", res.ResidualNorm))
	return res, dynamo.Errorf(kind, "newton.Solve", format, args...)
}

// Solve iterates from the initial guess in y. Entries with mask[i] set are
// held at their initial value; mask may be nil. On convergence the solution
// is copied back into y; otherwise y is left unchanged and the error has
// kind MaxIterationsExceeded or Diverged. Errors from the strategy are
// returned as they are.
func (s *Solver) Solve(st residual.Strategy, y *linalg.Vector, mask []bool) (Result, error) {
	return s.SolveContext(context.Background(), st, y, mask)
}

// SolveContext is Solve with a context checked between iterations.
func (s *Solver) SolveContext(ctx context.Context, st residual.Strategy, y *linalg.Vector, mask []bool) (Result, error) {
	s.status = Initialized
	if err := s.opts.Validate(); err != nil {
		return Result{Status: Initialized}, dynamo.Wrap(dynamo.KindNotConfigured, "newton.Solve", err)
	}
	if mask != nil && len(mask) != y.Len() {
		return Result{Status: Initialized}, dynamo.Errorf(dynamo.KindDimensionMismatch, "newton.Solve", "mask has %d entries for %d unknowns", len(mask), y.Len())
	}

	x := y.Clone()
	res := Result{Y: x}

	f, r0, err := s.residual(st, x, mask)
	if err != nil {
		return res, err
	}
	res.ResidualNorm = r0
	if math.IsNaN(r0) || math.IsInf(r0, 0) {
		return s.fail(Diverged, res, dynamo.KindDiverged, "initial residual is not finite")
	}
	tol := s.opts.AbsTol
	if s.opts.Mode == RelativeAndAbsolute {
		tol += s.opts.RelTol * r0
	}
	res.Tolerance = tol

	if r0 <= tol {
		s.status = Converged
		res.Status = Converged
		s.log.Debug("newton converged", slog.Int("iterations", 0), slog.Float64("residual", r0))
		return res, y.CopyFrom(x)
	}

	s.status = Iterating
	dx := linalg.NewVector(x.Len())
	for k := 1; k <= s.opts.MaxIterations; k++ {
		if err := ctx.Err(); err != nil {
			s.status = Initialized
			res.Status = Initialized
			return res, err
		}
		res.Iterations = k

		if k == 1 || !s.opts.ReuseJacobian {
			j, err := s.jacobian(st, x, mask)
			if err != nil {
				return res, err
			}
			if err := s.linear.Factorise(j); err != nil {
				if errors.Is(err, dynamo.ErrSingularMatrix) {
					return s.fail(Diverged, res, dynamo.KindDiverged, "iteration %d: %v", k, err)
				}
				return res, err
			}
		}

		f.Scale(-1)
		if err := s.linear.Resolve(f, dx); err != nil {
			return res, err
		}
		if err := x.AXPY(1, dx); err != nil {
			return res, err
		}
		if !x.IsFinite() {
			return s.fail(Diverged, res, dynamo.KindDiverged, "iteration %d: update is not finite", k)
		}

		var r float64
		f, r, err = s.residual(st, x, mask)
		if err != nil {
			return res, err
		}
		res.ResidualNorm = r
		s.log.Debug("newton iteration",
			slog.Int("iteration", k),
			slog.Float64("residual", r),
			slog.Float64("step", dx.NormInf()))

		if math.IsNaN(r) || math.IsInf(r, 0) {
			return s.fail(Diverged, res, dynamo.KindDiverged, "iteration %d: residual is not finite", k)
		}
		if r <= tol {
			s.status = Converged
			res.Status = Converged
			s.log.Debug("newton converged", slog.Int("iterations", k), slog.Float64("residual", r))
			return res, y.CopyFrom(x)
		}
		if s.opts.MaxResidual > 0 && r > s.opts.MaxResidual {
			return s.fail(Diverged, res, dynamo.KindDiverged, "iteration %d: residual %g exceeds %g", k, r, s.opts.MaxResidual)
		}
	}
	return s.fail(MaxIterationsExceeded, res, dynamo.KindMaxIterationsExceeded,
		"residual %g above tolerance %g after %d iterations", res.ResidualNorm, tol, s.opts.MaxIterations)
}
