package residual

import (
	"math"

	"github.com/san-kum/numode/internal/linalg"
)

// fdStep is sqrt(machine epsilon), the usual forward-difference step.
var fdStep = math.Sqrt(2.220446049250313e-16)

// Func is a vector-valued function of a vector.
type Func func(y *linalg.Vector) (*linalg.Vector, error)

// FiniteDifference approximates the Jacobian of fn at y by forward
// differences. Component j is perturbed by fdStep·max(|y_j|, 1); the
// perturbation actually applied (after rounding) is used as the divisor.
func FiniteDifference(fn Func, y *linalg.Vector) (*linalg.Matrix, error) {
	f0, err := fn(y)
	if err != nil {
		return nil, err
	}
	rows, n := f0.Len(), y.Len()
	jac := linalg.NewMatrix(rows, n)
	d := jac.Data()

	yp := y.Clone()
	p := yp.Data()
	for j := 0; j < n; j++ {
		orig := p[j]
		p[j] = orig + fdStep*math.Max(math.Abs(orig), 1)
		delta := p[j] - orig

		fp, err := fn(yp)
		if err != nil {
			return nil, err
		}
		for i, v := range fp.Data() {
			d[i*n+j] = (v - f0.Data()[i]) / delta
		}
		p[j] = orig
	}
	return jac, nil
}
