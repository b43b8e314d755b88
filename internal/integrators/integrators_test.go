package integrators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/history"
	"github.com/san-kum/numode/internal/newton"
)

// decay is y' = -y with an analytic Jacobian.
type decay struct{}

func (decay) Dim() int                           { return 1 }
func (decay) Derive(_ float64, y, dy []float64)  { dy[0] = -y[0] }
func (decay) Jacobian(_ float64, _, j []float64) { j[0] = -1 }

// fdDecay is decay without a Jacobian, forcing finite differences.
type fdDecay struct{}

func (fdDecay) Dim() int                          { return 1 }
func (fdDecay) Derive(_ float64, y, dy []float64) { dy[0] = -y[0] }

// riccati is y' = -y².
type riccati struct{}

func (riccati) Dim() int                          { return 1 }
func (riccati) Derive(_ float64, y, dy []float64) { dy[0] = -y[0] * y[0] }

// drift is y0' = -y0, y1' = 1.
type drift struct{}

func (drift) Dim() int { return 2 }
func (drift) Derive(_ float64, y, dy []float64) {
	dy[0] = -y[0]
	dy[1] = 1
}

func steppers() []Stepper {
	return []Stepper{NewEuler(), NewRK4(), NewBackwardEuler(), NewBDF2(), NewAdamsMoulton2(),
		NewRK45(), NewRKF45(), NewBackwardEulerPC(), NewAdamsMoulton2PC()}
}

func integrate(t *testing.T, s Stepper, sys dynamo.System, y0 []float64, h, end float64) []float64 {
	t.Helper()
	hist, err := history.NewWithInitial(y0, max(s.HistoryDepth(), 2))
	if err != nil {
		t.Fatal(err)
	}
	n := int(math.Round(end / h))
	for k := 0; k < n; k++ {
		if err := s.Step(sys, h, float64(k)*h, hist); err != nil {
			t.Fatalf("%s step %d: %v", s.Name(), k, err)
		}
	}
	out, err := hist.Slot(0)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestConvergenceOrder(t *testing.T) {
	tests := []struct {
		stepper func() Stepper
		sys     dynamo.System
		order   float64
	}{
		{func() Stepper { return NewEuler() }, decay{}, 1},
		{func() Stepper { return NewRK4() }, decay{}, 4},
		{func() Stepper { return NewBackwardEuler() }, decay{}, 1},
		{func() Stepper { return NewBDF2() }, decay{}, 2},
		{func() Stepper { return NewBDF2() }, fdDecay{}, 2},
		{func() Stepper { return NewAdamsMoulton2() }, decay{}, 2},
		{func() Stepper { return NewAdamsMoulton2() }, fdDecay{}, 2},
		{func() Stepper { return NewBackwardEulerPC() }, decay{}, 1},
		{func() Stepper { return NewAdamsMoulton2PC() }, decay{}, 2},
	}
	exact := math.Exp(-1)
	for _, tt := range tests {
		t.Run(tt.stepper().Name(), func(t *testing.T) {
			var prev float64
			for i, h := range []float64{0.04, 0.02, 0.01} {
				got := integrate(t, tt.stepper(), tt.sys, []float64{1}, h, 1)
				err := math.Abs(got[0] - exact)
				require.Less(t, err, 10*math.Pow(h, tt.order))
				if i > 0 {
					require.InDelta(t, tt.order, math.Log2(prev/err), 0.25)
				}
				prev = err
			}
		})
	}
}

func TestInsufficientHistory(t *testing.T) {
	for _, s := range []Stepper{NewBDF2(), NewAdamsMoulton2()} {
		hist, err := history.NewWithInitial([]float64{1}, 1)
		require.NoError(t, err)
		err = s.Step(decay{}, 0.1, 0, hist)
		require.ErrorIs(t, err, dynamo.ErrInsufficientHistory, s.Name())
		v, _ := hist.Value(0, 0)
		require.Equal(t, 1.0, v)
	}

	for _, s := range steppers() {
		empty, _ := history.New(1, 2)
		require.ErrorIs(t, s.Step(decay{}, 0.1, 0, empty), dynamo.ErrInsufficientHistory, s.Name())

		wide, _ := history.NewWithInitial([]float64{1, 2}, 2)
		require.ErrorIs(t, s.Step(decay{}, 0.1, 0, wide), dynamo.ErrDimensionMismatch, s.Name())
	}
}

func TestFailedStepLeavesHistory(t *testing.T) {
	s := NewBDF2()
	opts := newton.DefaultOptions()
	opts.Mode = newton.AbsoluteOnly
	opts.AbsTol = 1e-300
	opts.MaxIterations = 1
	s.SetNewtonOptions(opts)

	hist, _ := history.New(1, 2)
	require.NoError(t, hist.SetRow(0, []float64{2}))
	require.NoError(t, hist.SetRow(1, []float64{3}))

	err := s.Step(riccati{}, 0.5, 0, hist)
	require.ErrorIs(t, err, dynamo.ErrMaxIterationsExceeded)
	require.Equal(t, newton.MaxIterationsExceeded, s.LastResult().Status)
	s0, _ := hist.Slot(0)
	s1, _ := hist.Slot(1)
	require.Equal(t, dynamo.State{2}, s0)
	require.Equal(t, dynamo.State{3}, s1)
	require.Equal(t, 2, hist.Filled())
}

func TestStepShiftsHistory(t *testing.T) {
	hist, _ := history.NewWithInitial([]float64{1}, 3)
	s := NewBackwardEuler()
	h := 0.1
	for k := 0; k < 2; k++ {
		require.NoError(t, s.Step(decay{}, h, float64(k)*h, hist))
	}
	require.Equal(t, 3, hist.Filled())
	for slot, want := range []float64{1 / ((1 + h) * (1 + h)), 1 / (1 + h), 1} {
		v, _ := hist.Value(0, slot)
		require.InDelta(t, want, v, 1e-9, "slot %d", slot)
	}
}

func TestBDF2BootstrapsWithTrapezoid(t *testing.T) {
	h := 0.1
	a, _ := history.NewWithInitial([]float64{1}, 2)
	b, _ := history.NewWithInitial([]float64{1}, 2)

	bdf := NewBDF2()
	require.NoError(t, bdf.Step(decay{}, h, 0, a))
	require.NoError(t, NewAdamsMoulton2().Step(decay{}, h, 0, b))

	va, _ := a.Value(0, 0)
	vb, _ := b.Value(0, 0)
	require.InDelta(t, vb, va, 1e-12)
	require.InDelta(t, (1-h/2)/(1+h/2), va, 1e-12)

	// The second step uses the two-step formula.
	require.NoError(t, bdf.Step(decay{}, h, h, a))
	want := (4.0/3.0*va - 1.0/3.0) / (1 + 2.0/3.0*h)
	v2, _ := a.Value(0, 0)
	require.InDelta(t, want, v2, 1e-12)
	require.Greater(t, bdf.Evaluations(), 0)
}

func TestPinnedVariableIsHeld(t *testing.T) {
	for _, s := range steppers() {
		t.Run(s.Name(), func(t *testing.T) {
			hist, _ := history.NewWithInitial([]float64{1, 5}, 2)
			require.NoError(t, hist.Pin(1))
			for k := 0; k < 4; k++ {
				require.NoError(t, s.Step(drift{}, 0.1, float64(k)*0.1, hist))
			}
			v, _ := hist.Value(1, 0)
			require.Equal(t, 5.0, v)
			y0, _ := hist.Value(0, 0)
			require.Less(t, y0, 1.0)
		})
	}
}

func TestImplicitHandlesStiffDecay(t *testing.T) {
	// y' = -1000 y with h = 0.1: forward Euler blows up, the implicit
	// methods stay bounded.
	stiff := scaled{k: 1000}
	for _, s := range []Stepper{NewBackwardEuler(), NewBDF2()} {
		got := integrate(t, s, stiff, []float64{1}, 0.1, 1)
		require.Less(t, math.Abs(got[0]), 1e-3, s.Name())
	}
	got := integrate(t, NewEuler(), stiff, []float64{1}, 0.1, 1)
	require.Greater(t, math.Abs(got[0]), 1e10)
}

type scaled struct{ k float64 }

func (s scaled) Dim() int                           { return 1 }
func (s scaled) Derive(_ float64, y, dy []float64)  { dy[0] = -s.k * y[0] }
func (s scaled) Jacobian(_ float64, _, j []float64) { j[0] = -s.k }

func TestEmbeddedPairs(t *testing.T) {
	exact := math.Exp(-1)
	for _, newRK := range []func() *EmbeddedRK{NewRK45, NewRKF45} {
		t.Run(newRK().Name(), func(t *testing.T) {
			coarse := math.Abs(integrate(t, newRK(), decay{}, []float64{1}, 0.1, 1)[0] - exact)
			fine := math.Abs(integrate(t, newRK(), decay{}, []float64{1}, 0.05, 1)[0] - exact)
			require.Less(t, coarse, 1e-7)
			require.Greater(t, coarse/fine, 16.0)

			rk := newRK()
			hist, _ := history.NewWithInitial([]float64{1}, 1)
			out := make([]float64, 1)
			big, err := rk.Trial(decay{}, 0.4, 0, hist, out)
			require.NoError(t, err)
			require.InDelta(t, math.Exp(-0.4), out[0], 1e-5)
			v, _ := hist.Value(0, 0)
			require.Equal(t, 1.0, v)

			small, _ := rk.Trial(decay{}, 0.2, 0, hist, out)
			require.Greater(t, big, 0.0)
			require.Greater(t, big/small, 16.0)
			require.Equal(t, 2*len(rk.tab.c), rk.Evaluations())

			_, err = rk.Trial(decay{}, 0.1, 0, hist, make([]float64, 2))
			require.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
		})
	}
}

func TestStepControl(t *testing.T) {
	var hd HalfDouble
	require.Equal(t, 0.05, hd.Next(2e-3, 1e-3, 0.1, 4))
	require.Equal(t, 0.2, hd.Next(1e-4, 1e-3, 0.1, 4))
	require.Equal(t, 0.05, hd.Next(math.NaN(), 1e-3, 0.1, 4))

	p := NewProportional()
	require.InDelta(t, 1.0, p.Next(0, 1e-3, 0.1, 4), 1e-12)
	require.InDelta(t, 0.02, p.Next(math.Inf(1), 1e-3, 0.1, 4), 1e-12)
	// error 32x the tolerance at order 4 halves h, times the safety factor
	require.InDelta(t, 0.045, p.Next(32e-3, 1e-3, 0.1, 4), 1e-12)

	c, err := ParseStepControl("half_double")
	require.NoError(t, err)
	require.Equal(t, HalfDouble{}, c)
	_, err = ParseStepControl("pid")
	require.Error(t, err)
}

func TestPredictorCorrector(t *testing.T) {
	h := 0.1

	// the converged correction is the implicit solution
	be := NewBackwardEulerPC()
	hist, _ := history.NewWithInitial([]float64{1}, 1)
	require.NoError(t, be.Step(decay{}, h, 0, hist))
	v, _ := hist.Value(0, 0)
	require.InDelta(t, 1/(1+h), v, 1e-8)
	require.Greater(t, be.Iterations(), 1)

	am := NewAdamsMoulton2PC()
	hist, _ = history.NewWithInitial([]float64{1}, 1)
	require.NoError(t, am.Step(decay{}, h, 0, hist))
	v, _ = hist.Value(0, 0)
	require.InDelta(t, (1-h/2)/(1+h/2), v, 1e-8)

	// h·L = 100: the fixed-point iteration cannot converge
	stiff := NewBackwardEulerPC()
	hist, _ = history.NewWithInitial([]float64{1}, 1)
	err := stiff.Step(scaled{k: 1000}, h, 0, hist)
	require.ErrorIs(t, err, dynamo.ErrMaxIterationsExceeded)
	require.True(t, dynamo.Recoverable(err))
	v, _ = hist.Value(0, 0)
	require.Equal(t, 1.0, v)

	fixed := NewAdamsMoulton2PC()
	fixed.FixedIterations = true
	fixed.MaxIterations = 1
	hist, _ = history.NewWithInitial([]float64{1}, 1)
	require.NoError(t, fixed.Step(decay{}, h, 0, hist))
	v, _ = hist.Value(0, 0)
	require.InDelta(t, 1-h+h*h/2, v, 1e-12)
	require.Equal(t, 2, fixed.Evaluations())
}
