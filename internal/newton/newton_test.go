package newton_test

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/history"
	"github.com/san-kum/numode/internal/linalg"
	"github.com/san-kum/numode/internal/newton"
	"github.com/san-kum/numode/internal/residual"
)

// funcStrategy adapts plain functions to residual.Strategy.
type funcStrategy struct {
	f         func(y []float64) []float64
	j         func(y []float64) []float64
	jacobians int
	residuals int
}

func (s *funcStrategy) Bind(residual.Context) error { return nil }

func (s *funcStrategy) Residual(y *linalg.Vector) (*linalg.Vector, error) {
	s.residuals++
	return linalg.NewVectorFrom(s.f(y.Data())), nil
}

func (s *funcStrategy) Jacobian(y *linalg.Vector) (*linalg.Matrix, error) {
	s.jacobians++
	if s.j == nil {
		return residual.FiniteDifference(s.Residual, y)
	}
	n := y.Len()
	return linalg.NewMatrixFrom(n, n, s.j(y.Data()))
}

func sqrtTwo() *funcStrategy {
	return &funcStrategy{
		f: func(y []float64) []float64 { return []float64{y[0]*y[0] - 2} },
		j: func(y []float64) []float64 { return []float64{2 * y[0]} },
	}
}

func TestZeroResidualTakesNoIterations(t *testing.T) {
	st := &funcStrategy{
		f: func(y []float64) []float64 { return []float64{y[0] - 3, y[1] + 1} },
	}
	y := linalg.NewVectorFrom([]float64{3, -1})

	res, err := newton.New(newton.DefaultOptions()).Solve(st, y, nil)
	require.NoError(t, err)
	require.Equal(t, newton.Converged, res.Status)
	require.Zero(t, res.Iterations)
	require.Zero(t, st.jacobians)
	require.Equal(t, []float64{3, -1}, y.Data())
}

func TestSquareRootOfTwo(t *testing.T) {
	for _, norm := range []newton.Norm{newton.NormInf, newton.Norm2} {
		for _, mode := range []newton.Mode{newton.AbsoluteOnly, newton.RelativeAndAbsolute} {
			t.Run(norm.String()+"/"+mode.String(), func(t *testing.T) {
				opts := newton.DefaultOptions()
				opts.Norm = norm
				opts.Mode = mode
				s := newton.New(opts)

				y := linalg.NewVectorFrom([]float64{1})
				res, err := s.Solve(sqrtTwo(), y, nil)
				require.NoError(t, err)
				require.Equal(t, newton.Converged, res.Status)
				require.Equal(t, newton.Converged, s.Status())
				require.LessOrEqual(t, res.Iterations, 6)
				require.InDelta(t, math.Sqrt2, y.Data()[0], 1e-8)
			})
		}
	}
}

func TestFiniteDifferenceJacobianConverges(t *testing.T) {
	st := sqrtTwo()
	st.j = nil
	y := linalg.NewVectorFrom([]float64{1})
	_, err := newton.New(newton.DefaultOptions()).Solve(st, y, nil)
	require.NoError(t, err)
	require.InDelta(t, math.Sqrt2, y.Data()[0], 1e-8)
}

func TestReuseJacobian(t *testing.T) {
	opts := newton.DefaultOptions()
	opts.ReuseJacobian = true
	opts.MaxIterations = 50
	st := sqrtTwo()

	y := linalg.NewVectorFrom([]float64{1.5})
	res, err := newton.New(opts).Solve(st, y, nil)
	require.NoError(t, err)
	require.Equal(t, 1, st.jacobians)
	require.Greater(t, res.Iterations, 1)
	require.InDelta(t, math.Sqrt2, y.Data()[0], 1e-7)
}

func TestMaxIterationsLeavesGuessUntouched(t *testing.T) {
	opts := newton.DefaultOptions()
	opts.MaxIterations = 2
	s := newton.New(opts)

	y := linalg.NewVectorFrom([]float64{100})
	res, err := s.Solve(sqrtTwo(), y, nil)
	require.ErrorIs(t, err, dynamo.ErrMaxIterationsExceeded)
	require.True(t, dynamo.Recoverable(err))
	require.Equal(t, newton.MaxIterationsExceeded, res.Status)
	require.Equal(t, 2, res.Iterations)
	require.Equal(t, 100.0, y.Data()[0])
}

func TestConvergenceOnFinalIteration(t *testing.T) {
	// A linear residual converges in exactly one iteration.
	st := &funcStrategy{
		f: func(y []float64) []float64 { return []float64{3*y[0] - 6} },
		j: func([]float64) []float64 { return []float64{3} },
	}
	opts := newton.DefaultOptions()
	opts.MaxIterations = 1
	y := linalg.NewVectorFrom([]float64{0})
	res, err := newton.New(opts).Solve(st, y, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Iterations)
	require.InDelta(t, 2, y.Data()[0], 1e-12)
}

func TestDiverged(t *testing.T) {
	tests := []struct {
		name string
		st   *funcStrategy
		opts func(*newton.Options)
	}{
		{
			name: "singular jacobian",
			st: &funcStrategy{
				f: func(y []float64) []float64 { return []float64{1 + y[0]*0} },
				j: func([]float64) []float64 { return []float64{0} },
			},
		},
		{
			name: "non-finite residual",
			st: &funcStrategy{
				f: func(y []float64) []float64 { return []float64{math.Log(y[0])} },
				j: func(y []float64) []float64 { return []float64{1 / y[0]} },
			},
		},
		{
			name: "residual above cap",
			st: &funcStrategy{
				f: func(y []float64) []float64 { return []float64{math.Exp(y[0]) - 1} },
				j: func(y []float64) []float64 { return []float64{math.Exp(y[0])} },
			},
			opts: func(o *newton.Options) { o.MaxResidual = 10 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := newton.DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			start := -1.0
			if tt.name == "residual above cap" {
				start = -5
			}
			y := linalg.NewVectorFrom([]float64{start})
			res, err := newton.New(opts).Solve(tt.st, y, nil)
			require.ErrorIs(t, err, dynamo.ErrDiverged)
			require.False(t, dynamo.Recoverable(err))
			require.Equal(t, newton.Diverged, res.Status)
			require.Equal(t, start, y.Data()[0])
		})
	}
}

func TestPinnedEntriesDoNotMove(t *testing.T) {
	// y0 + y1 = 3, y1² = 4; pinning y1 at 5 forces y0 = -2.
	st := &funcStrategy{
		f: func(y []float64) []float64 { return []float64{y[0] + y[1] - 3, y[1]*y[1] - 4} },
		j: func(y []float64) []float64 { return []float64{1, 1, 0, 2 * y[1]} },
	}
	y := linalg.NewVectorFrom([]float64{0, 5})
	res, err := newton.New(newton.DefaultOptions()).Solve(st, y, []bool{false, true})
	require.NoError(t, err)
	require.Equal(t, newton.Converged, res.Status)
	require.Equal(t, 5.0, y.Data()[1])
	require.InDelta(t, -2, y.Data()[0], 1e-10)

	_, err = newton.New(newton.DefaultOptions()).Solve(st, y, []bool{true})
	require.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
}

func TestSchemeResidualThroughNewton(t *testing.T) {
	// Backward Euler on y' = -y from 1: the step solves y(1+h) = 1.
	h := 0.1
	hst, err := history.NewWithInitial([]float64{1}, 1)
	require.NoError(t, err)
	sch := residual.NewBackwardEuler()
	require.NoError(t, sch.Bind(residual.Context{System: decay{}, H: h, History: hst}))

	y := linalg.NewVectorFrom([]float64{1 - h})
	_, err = newton.New(newton.DefaultOptions()).Solve(sch, y, nil)
	require.NoError(t, err)
	require.InDelta(t, 1/(1+h), y.Data()[0], 1e-8)
}

type decay struct{}

func (decay) Dim() int                          { return 1 }
func (decay) Derive(_ float64, y, dy []float64) { dy[0] = -y[0] }

func TestInvalidOptions(t *testing.T) {
	opts := newton.DefaultOptions()
	opts.MaxIterations = 0
	_, err := newton.New(opts).Solve(sqrtTwo(), linalg.NewVectorFrom([]float64{1}), nil)
	require.ErrorIs(t, err, dynamo.ErrNotConfigured)

	_, err = newton.ParseMode("sideways")
	require.Error(t, err)
	m, err := newton.ParseMode("absolute")
	require.NoError(t, err)
	require.Equal(t, newton.AbsoluteOnly, m)
	n, err := newton.ParseNorm("2")
	require.NoError(t, err)
	require.Equal(t, newton.Norm2, n)
}

func TestContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newton.New(newton.DefaultOptions()).SolveContext(ctx, sqrtTwo(), linalg.NewVectorFrom([]float64{1}), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoggerReceivesIterations(t *testing.T) {
	var buf bytes.Buffer
	opts := newton.DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := newton.New(opts).Solve(sqrtTwo(), linalg.NewVectorFrom([]float64{1}), nil)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "newton iteration")
	require.Contains(t, buf.String(), "newton converged")
}
