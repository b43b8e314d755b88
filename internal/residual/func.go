package residual

import (
	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/linalg"
)

// FuncStrategy adapts a plain function F(y) to Strategy for root finding
// outside time stepping. Bind is a no-op. A nil Jac falls back to finite
// differences.
type FuncStrategy struct {
	F   Func
	Jac func(y *linalg.Vector) (*linalg.Matrix, error)
}

func NewFunc(f Func, jac func(y *linalg.Vector) (*linalg.Matrix, error)) *FuncStrategy {
	return &FuncStrategy{F: f, Jac: jac}
}

func (s *FuncStrategy) Bind(Context) error { return nil }

func (s *FuncStrategy) Residual(y *linalg.Vector) (*linalg.Vector, error) {
	if s.F == nil {
		return nil, dynamo.Errorf(dynamo.KindNotConfigured, "FuncStrategy.Residual", "no function")
	}
	return s.F(y)
}

func (s *FuncStrategy) Jacobian(y *linalg.Vector) (*linalg.Matrix, error) {
	if s.Jac != nil {
		return s.Jac(y)
	}
	return FiniteDifference(s.Residual, y)
}
