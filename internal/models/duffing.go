package models

import (
	"math"

	"github.com/san-kum/numode/internal/dynamo"
)

// Duffing is the forced nonlinear oscillator
// x” + δx' + αx + βx³ = γ cos(ωt), as the system [x, v].
type Duffing struct {
	Alpha, Beta, Delta, Gamma, Omega float64
}

func NewDuffing() *Duffing {
	return &Duffing{-1.0, 1.0, 0.3, 0.5, 1.2}
}

func (d *Duffing) Dim() int { return 2 }

func (d *Duffing) Derive(t float64, y, dy []float64) {
	x, v := y[0], y[1]
	dy[0] = v
	dy[1] = -d.Delta*v - d.Alpha*x - d.Beta*x*x*x + d.Gamma*math.Cos(d.Omega*t)
}

func (d *Duffing) Jacobian(_ float64, y, jac []float64) {
	jac[0], jac[1] = 0, 1
	jac[2], jac[3] = -d.Alpha-3*d.Beta*y[0]*y[0], -d.Delta
}

func (d *Duffing) DefaultState() dynamo.State { return dynamo.State{1.0, 0.0} }

func (d *Duffing) GetParams() map[string]float64 {
	return map[string]float64{"alpha": d.Alpha, "beta": d.Beta, "delta": d.Delta, "gamma": d.Gamma, "omega": d.Omega}
}

func (d *Duffing) SetParam(n string, v float64) {
	switch n {
	case "alpha":
		d.Alpha = v
	case "beta":
		d.Beta = v
	case "delta":
		d.Delta = v
	case "gamma":
		d.Gamma = v
	case "omega":
		d.Omega = v
	}
}
