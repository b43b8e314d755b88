package models

import "github.com/san-kum/numode/internal/dynamo"

// VanDerPol implements the Van der Pol oscillator.
// State: [x, y] where y = dx/dt
// Equations:
//
//	dx/dt = y
//	dy/dt = μ(1 - x²)y - x
//
// Large μ makes the system stiff.
type VanDerPol struct {
	mu float64
}

func NewVanDerPol() *VanDerPol {
	return &VanDerPol{
		mu: 1.0, // classic limit cycle
	}
}

func (v *VanDerPol) Dim() int { return 2 }

func (v *VanDerPol) Derive(_ float64, s, ds []float64) {
	x, y := s[0], s[1]
	ds[0] = y
	ds[1] = v.mu*(1-x*x)*y - x
}

func (v *VanDerPol) Jacobian(_ float64, s, jac []float64) {
	x, y := s[0], s[1]
	jac[0], jac[1] = 0, 1
	jac[2], jac[3] = -2*v.mu*x*y-1, v.mu*(1-x*x)
}

func (v *VanDerPol) DefaultState() dynamo.State {
	return dynamo.State{2.0, 0.0}
}

func (v *VanDerPol) GetParams() map[string]float64 {
	return map[string]float64{
		"mu": v.mu,
	}
}

func (v *VanDerPol) SetParam(name string, value float64) {
	if name == "mu" {
		v.mu = value
	}
}
