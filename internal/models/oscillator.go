package models

import (
	"math"

	"github.com/san-kum/numode/internal/dynamo"
)

// Oscillator is the undamped harmonic oscillator x” = -ω²x as the
// first-order system [x, v].
type Oscillator struct {
	Omega float64
}

func NewOscillator() *Oscillator { return &Oscillator{Omega: 1} }

func (o *Oscillator) Dim() int { return 2 }

func (o *Oscillator) Derive(_ float64, y, dy []float64) {
	dy[0] = y[1]
	dy[1] = -o.Omega * o.Omega * y[0]
}

func (o *Oscillator) Jacobian(_ float64, _, jac []float64) {
	jac[0], jac[1] = 0, 1
	jac[2], jac[3] = -o.Omega*o.Omega, 0
}

func (o *Oscillator) Solution(t float64, y0 []float64) []float64 {
	c, s := math.Cos(o.Omega*t), math.Sin(o.Omega*t)
	return []float64{
		y0[0]*c + y0[1]/o.Omega*s,
		-y0[0]*o.Omega*s + y0[1]*c,
	}
}

// Invariant is the energy per unit mass.
func (o *Oscillator) Invariant(y []float64) float64 {
	return 0.5 * (y[1]*y[1] + o.Omega*o.Omega*y[0]*y[0])
}

func (o *Oscillator) DefaultState() dynamo.State { return dynamo.State{1, 0} }

func (o *Oscillator) GetParams() map[string]float64 { return map[string]float64{"omega": o.Omega} }

func (o *Oscillator) SetParam(name string, value float64) {
	if name == "omega" {
		o.Omega = value
	}
}
