package models

import (
	"math"

	"github.com/san-kum/numode/internal/dynamo"
)

// LotkaVolterra is the predator-prey system
//
//	x' = αx - βxy
//	y' = δxy - γy
type LotkaVolterra struct {
	Alpha, Beta, Delta, Gamma float64
}

func NewLotkaVolterra() *LotkaVolterra {
	return &LotkaVolterra{Alpha: 1.1, Beta: 0.4, Delta: 0.1, Gamma: 0.4}
}

func (l *LotkaVolterra) Dim() int { return 2 }

func (l *LotkaVolterra) Derive(_ float64, s, ds []float64) {
	x, y := s[0], s[1]
	ds[0] = l.Alpha*x - l.Beta*x*y
	ds[1] = l.Delta*x*y - l.Gamma*y
}

func (l *LotkaVolterra) Jacobian(_ float64, s, jac []float64) {
	x, y := s[0], s[1]
	jac[0], jac[1] = l.Alpha-l.Beta*y, -l.Beta*x
	jac[2], jac[3] = l.Delta*y, l.Delta*x-l.Gamma
}

// Invariant is the conserved V = δx - γ·ln x + βy - α·ln y.
func (l *LotkaVolterra) Invariant(s []float64) float64 {
	x, y := s[0], s[1]
	return l.Delta*x - l.Gamma*math.Log(x) + l.Beta*y - l.Alpha*math.Log(y)
}

func (l *LotkaVolterra) DefaultState() dynamo.State { return dynamo.State{10, 10} }

func (l *LotkaVolterra) GetParams() map[string]float64 {
	return map[string]float64{"alpha": l.Alpha, "beta": l.Beta, "delta": l.Delta, "gamma": l.Gamma}
}

func (l *LotkaVolterra) SetParam(name string, value float64) {
	switch name {
	case "alpha":
		l.Alpha = value
	case "beta":
		l.Beta = value
	case "delta":
		l.Delta = value
	case "gamma":
		l.Gamma = value
	}
}
