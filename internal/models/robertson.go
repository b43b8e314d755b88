package models

import "github.com/san-kum/numode/internal/dynamo"

// Robertson is the stiff chemical kinetics benchmark
//
//	y1' = -k1·y1 + k3·y2·y3
//	y2' =  k1·y1 - k3·y2·y3 - k2·y2²
//	y3' =  k2·y2²
//
// with k1 = 0.04, k2 = 3e7, k3 = 1e4. The total y1+y2+y3 is conserved.
type Robertson struct {
	K1, K2, K3 float64
}

func NewRobertson() *Robertson { return &Robertson{K1: 0.04, K2: 3e7, K3: 1e4} }

func (r *Robertson) Dim() int { return 3 }

func (r *Robertson) Derive(_ float64, y, dy []float64) {
	a := r.K1 * y[0]
	b := r.K3 * y[1] * y[2]
	c := r.K2 * y[1] * y[1]
	dy[0] = -a + b
	dy[1] = a - b - c
	dy[2] = c
}

func (r *Robertson) Jacobian(_ float64, y, jac []float64) {
	copy(jac, []float64{
		-r.K1, r.K3 * y[2], r.K3 * y[1],
		r.K1, -r.K3*y[2] - 2*r.K2*y[1], -r.K3 * y[1],
		0, 2 * r.K2 * y[1], 0,
	})
}

func (r *Robertson) Invariant(y []float64) float64 { return y[0] + y[1] + y[2] }

func (r *Robertson) DefaultState() dynamo.State { return dynamo.State{1, 0, 0} }
