package models

import (
	"math"

	"github.com/san-kum/numode/internal/dynamo"
)

// Decay is exponential decay dy/dt = -k·y.
type Decay struct {
	K float64
}

func NewDecay() *Decay { return &Decay{K: 1} }

func (d *Decay) Dim() int { return 1 }

func (d *Decay) Derive(_ float64, y, dy []float64) {
	dy[0] = -d.K * y[0]
}

func (d *Decay) Jacobian(_ float64, _, jac []float64) {
	jac[0] = -d.K
}

func (d *Decay) Solution(t float64, y0 []float64) []float64 {
	return []float64{y0[0] * math.Exp(-d.K*t)}
}

func (d *Decay) DefaultState() dynamo.State { return dynamo.State{1} }

func (d *Decay) GetParams() map[string]float64 { return map[string]float64{"k": d.K} }

func (d *Decay) SetParam(name string, value float64) {
	if name == "k" {
		d.K = value
	}
}
