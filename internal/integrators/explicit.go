package integrators

import (
	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/history"
)

// Euler is the explicit forward Euler method.
type Euler struct {
	dy []float64
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string      { return "euler" }
func (e *Euler) HistoryDepth() int { return 1 }

// Predict writes y + h·f(t, y) into out.
func (e *Euler) Predict(sys dynamo.System, h, t float64, y, out []float64) {
	if len(e.dy) != len(y) {
		e.dy = make([]float64, len(y))
	}
	sys.Derive(t, y, e.dy)
	for i := range y {
		out[i] = y[i] + h*e.dy[i]
	}
}

func (e *Euler) Step(sys dynamo.System, h, t float64, hist *history.History) error {
	if err := checkHistory(e.Name(), sys, hist, e.HistoryDepth()); err != nil {
		return err
	}
	y, err := hist.Row(0)
	if err != nil {
		return err
	}
	next := make([]float64, y.Len())
	e.Predict(sys, h, t, y.Data(), next)
	return Commit(hist, next)
}

// RK4 is the classical fourth-order Runge-Kutta method.
type RK4 struct {
	k1, k2, k3, k4 []float64
	scratch        []float64
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string      { return "rk4" }
func (r *RK4) HistoryDepth() int { return 1 }

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make([]float64, n)
		r.k2 = make([]float64, n)
		r.k3 = make([]float64, n)
		r.k4 = make([]float64, n)
		r.scratch = make([]float64, n)
	}
}

func (r *RK4) Step(sys dynamo.System, h, t float64, hist *history.History) error {
	if err := checkHistory(r.Name(), sys, hist, r.HistoryDepth()); err != nil {
		return err
	}
	row, err := hist.Row(0)
	if err != nil {
		return err
	}
	x := row.Data()
	n := len(x)
	r.ensureScratch(n)

	sys.Derive(t, x, r.k1)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + h*0.5*r.k1[i]
	}
	sys.Derive(t+h*0.5, r.scratch, r.k2)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + h*0.5*r.k2[i]
	}
	sys.Derive(t+h*0.5, r.scratch, r.k3)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + h*r.k3[i]
	}
	sys.Derive(t+h, r.scratch, r.k4)

	result := make([]float64, n)
	h6 := h / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + h6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return Commit(hist, result)
}
