package models

import "github.com/san-kum/numode/internal/dynamo"

type Lorenz struct{ sigma, rho, beta float64 }

func NewLorenz() *Lorenz { return &Lorenz{10.0, 28.0, 8.0 / 3.0} }

func (l *Lorenz) Dim() int { return 3 }

// Derive calculates the Lorenz attractor derivatives.
func (l *Lorenz) Derive(_ float64, s, ds []float64) {
	ds[0] = l.sigma * (s[1] - s[0])
	ds[1] = s[0]*(l.rho-s[2]) - s[1]
	ds[2] = s[0]*s[1] - l.beta*s[2]
}

func (l *Lorenz) Jacobian(_ float64, s, jac []float64) {
	copy(jac, []float64{
		-l.sigma, l.sigma, 0,
		l.rho - s[2], -1, -s[0],
		s[1], s[0], -l.beta,
	})
}

func (l *Lorenz) DefaultState() dynamo.State { return dynamo.State{1.0, 1.0, 1.0} }
func (l *Lorenz) GetParams() map[string]float64 {
	return map[string]float64{"sigma": l.sigma, "rho": l.rho, "beta": l.beta}
}
func (l *Lorenz) SetParam(n string, v float64) {
	switch n {
	case "sigma":
		l.sigma = v
	case "rho":
		l.rho = v
	case "beta":
		l.beta = v
	}
}
