package dynamo

import "math"

// System is a first-order ODE system dy/dt = f(t, y).
// Derive writes f(t, y) into dy; both slices have length Dim().
type System interface {
	Derive(t float64, y, dy []float64)
	Dim() int
}

// JacobianSystem is a System that can supply ∂f/∂y analytically.
// jac is a row-major Dim()×Dim() buffer: jac[i*n+j] = ∂f_i/∂y_j.
type JacobianSystem interface {
	System
	Jacobian(t float64, y []float64, jac []float64)
}

// Exact is implemented by systems with a closed-form solution, used for
// error and order studies.
type Exact interface {
	Solution(t float64, y0 []float64) []float64
}

// Invariant is implemented by systems with a conserved quantity, used to
// measure drift.
type Invariant interface {
	Invariant(y []float64) float64
}

// Configurable exposes named model parameters.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64)
}

// Model is a System with a conventional starting point.
type Model interface {
	System
	DefaultState() State
}

// Counter is implemented by systems that count right-hand-side evaluations.
type Counter interface {
	Evaluations() int
}

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MaxAbsDiff returns max_i |s_i - other_i| over the common prefix.
func (s State) MaxAbsDiff(other State) float64 {
	n := len(s)
	if len(other) < n {
		n = len(other)
	}
	m := 0.0
	for i := 0; i < n; i++ {
		if d := math.Abs(s[i] - other[i]); d > m {
			m = d
		}
	}
	return m
}

// Derivative evaluates sys at (t, y) into a freshly allocated slice.
func Derivative(sys System, t float64, y []float64) []float64 {
	dy := make([]float64, sys.Dim())
	sys.Derive(t, y, dy)
	return dy
}
