package dynamo

import (
	"errors"
	"fmt"
)

// Kind classifies numerical failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindDimensionMismatch
	KindRangeError
	KindSingularMatrix
	KindNotFactorized
	KindNotConfigured
	KindInsufficientHistory
	KindMaxIterationsExceeded
	KindDiverged
)

var kindNames = map[Kind]string{
	KindUnknown:               "unknown",
	KindDimensionMismatch:     "dimension mismatch",
	KindRangeError:            "index out of range",
	KindSingularMatrix:        "singular matrix",
	KindNotFactorized:         "matrix not factorized",
	KindNotConfigured:         "not configured",
	KindInsufficientHistory:   "insufficient history",
	KindMaxIterationsExceeded: "maximum iterations exceeded",
	KindDiverged:              "diverged",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Domain errors. Match with errors.Is; every *Error of the same Kind matches
// its sentinel.
var (
	ErrDimensionMismatch     = &Error{Kind: KindDimensionMismatch}
	ErrRange                 = &Error{Kind: KindRangeError}
	ErrSingularMatrix        = &Error{Kind: KindSingularMatrix}
	ErrNotFactorized         = &Error{Kind: KindNotFactorized}
	ErrNotConfigured         = &Error{Kind: KindNotConfigured}
	ErrInsufficientHistory   = &Error{Kind: KindInsufficientHistory}
	ErrMaxIterationsExceeded = &Error{Kind: KindMaxIterationsExceeded}
	ErrDiverged              = &Error{Kind: KindDiverged}

	// ErrInvalidSize is returned for zero or negative container sizes.
	ErrInvalidSize = errors.New("dynamo: invalid size")
)

// Error is the structured error carried through the solver stack.
type Error struct {
	Kind    Kind
	Op      string
	Detail  string
	Wrapped error
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and op to an underlying error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Wrapped: err}
}

func (e *Error) Error() string {
	msg := "dynamo: " + e.Kind.String()
	if e.Op != "" {
		msg = "dynamo: " + e.Op + ": " + e.Kind.String()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports kind equality so callers can match against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Recoverable reports whether err is a failure an adaptive driver may retry
// with a smaller step.
func Recoverable(err error) bool {
	return KindOf(err) == KindMaxIterationsExceeded
}

// SimulationError wraps an error with integration context.
type SimulationError struct {
	Step    int
	Time    float64
	H       float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g, h=%.3g): %v", e.Step, e.Time, e.H, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
