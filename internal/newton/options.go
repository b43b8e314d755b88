package newton

import (
	"fmt"
	"log/slog"
	"strings"
)

// Mode selects how the termination tolerance is formed.
type Mode int

const (
	// AbsoluteOnly stops when ‖F‖ ≤ AbsTol.
	AbsoluteOnly Mode = iota
	// RelativeAndAbsolute stops when ‖F‖ ≤ AbsTol + RelTol·‖F(y0)‖.
	RelativeAndAbsolute
)

func (m Mode) String() string {
	switch m {
	case AbsoluteOnly:
		return "absolute"
	case RelativeAndAbsolute:
		return "relative"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts "absolute" or "relative".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "absolute", "abs":
		return AbsoluteOnly, nil
	case "relative", "rel", "relative+absolute":
		return RelativeAndAbsolute, nil
	}
	return 0, fmt.Errorf("newton: unknown tolerance mode %q", s)
}

// Norm selects the residual norm.
type Norm int

const (
	NormInf Norm = iota
	Norm2
)

func (n Norm) String() string {
	switch n {
	case NormInf:
		return "inf"
	case Norm2:
		return "2"
	}
	return fmt.Sprintf("Norm(%d)", int(n))
}

// ParseNorm accepts "inf" or "2".
func ParseNorm(s string) (Norm, error) {
	switch strings.ToLower(s) {
	case "inf", "max", "infinity":
		return NormInf, nil
	case "2", "l2", "euclidean":
		return Norm2, nil
	}
	return 0, fmt.Errorf("newton: unknown norm %q", s)
}

// Options configures a Solver.
type Options struct {
	AbsTol        float64
	RelTol        float64
	Mode          Mode
	Norm          Norm
	MaxIterations int
	// MaxResidual fails the solve as Diverged when a residual norm exceeds
	// it. Zero disables the check.
	MaxResidual float64
	// ReuseJacobian factorises the Jacobian on the first iteration only and
	// resolves against that factorization afterwards.
	ReuseJacobian bool
	// Logger receives per-iteration debug records. Nil discards them.
	Logger *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		AbsTol:        1e-8,
		RelTol:        1e-8,
		Mode:          RelativeAndAbsolute,
		Norm:          NormInf,
		MaxIterations: 10,
	}
}

// Validate rejects options no solve could honour.
func (o Options) Validate() error {
	if o.AbsTol < 0 || o.RelTol < 0 {
		return fmt.Errorf("newton: tolerances must be non-negative (abs %g, rel %g)", o.AbsTol, o.RelTol)
	}
	if o.AbsTol == 0 && (o.Mode == AbsoluteOnly || o.RelTol == 0) {
		return fmt.Errorf("newton: zero tolerance can never be met")
	}
	if o.MaxIterations < 1 {
		return fmt.Errorf("newton: max iterations must be at least 1, got %d", o.MaxIterations)
	}
	if o.MaxResidual < 0 {
		return fmt.Errorf("newton: max residual must be non-negative, got %g", o.MaxResidual)
	}
	return nil
}
