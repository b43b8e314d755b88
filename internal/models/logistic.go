package models

import (
	"math"

	"github.com/san-kum/numode/internal/dynamo"
)

// Logistic is population growth dy/dt = r·y·(1 - y/K).
type Logistic struct {
	Rate     float64
	Capacity float64
}

func NewLogistic() *Logistic { return &Logistic{Rate: 1, Capacity: 10} }

func (l *Logistic) Dim() int { return 1 }

func (l *Logistic) Derive(_ float64, y, dy []float64) {
	dy[0] = l.Rate * y[0] * (1 - y[0]/l.Capacity)
}

func (l *Logistic) Jacobian(_ float64, y, jac []float64) {
	jac[0] = l.Rate * (1 - 2*y[0]/l.Capacity)
}

func (l *Logistic) Solution(t float64, y0 []float64) []float64 {
	e := math.Exp(l.Rate * t)
	return []float64{l.Capacity * y0[0] * e / (l.Capacity + y0[0]*(e-1))}
}

func (l *Logistic) DefaultState() dynamo.State { return dynamo.State{0.5} }

func (l *Logistic) GetParams() map[string]float64 {
	return map[string]float64{"r": l.Rate, "K": l.Capacity}
}

func (l *Logistic) SetParam(name string, value float64) {
	switch name {
	case "r":
		l.Rate = value
	case "K":
		l.Capacity = value
	}
}
