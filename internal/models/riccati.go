package models

import "github.com/san-kum/numode/internal/dynamo"

// Riccati is dy/dt = -y², whose solution y0/(1 + y0·t) makes it the usual
// nonlinear check for the Newton loop.
type Riccati struct{}

func NewRiccati() *Riccati { return &Riccati{} }

func (r *Riccati) Dim() int { return 1 }

func (r *Riccati) Derive(_ float64, y, dy []float64) {
	dy[0] = -y[0] * y[0]
}

func (r *Riccati) Jacobian(_ float64, y, jac []float64) {
	jac[0] = -2 * y[0]
}

func (r *Riccati) Solution(t float64, y0 []float64) []float64 {
	return []float64{y0[0] / (1 + y0[0]*t)}
}

func (r *Riccati) DefaultState() dynamo.State { return dynamo.State{1} }
