package metrics

import (
	"github.com/san-kum/numode/internal/dynamo"
)

// ExactError compares each observed state with a closed-form solution
// started from the first observed state. The systems are autonomous, so
// the solution is evaluated at the elapsed time.
type ExactError struct {
	name  string
	exact dynamo.Exact
	final bool

	t0      float64
	y0      dynamo.State
	last    float64
	max     float64
	samples int
}

// NewMaxError reports the largest max-norm error over the run.
func NewMaxError(exact dynamo.Exact) *ExactError {
	return &ExactError{name: "max_error", exact: exact}
}

// NewFinalError reports the max-norm error of the last observed state.
func NewFinalError(exact dynamo.Exact) *ExactError {
	return &ExactError{name: "final_error", exact: exact, final: true}
}

func (e *ExactError) Name() string { return e.name }

func (e *ExactError) Observe(t float64, y dynamo.State) {
	if e.samples == 0 {
		e.t0 = t
		e.y0 = y.Clone()
	}
	e.samples++

	want := dynamo.State(e.exact.Solution(t-e.t0, e.y0))
	e.last = y.MaxAbsDiff(want)
	if e.last > e.max {
		e.max = e.last
	}
}

func (e *ExactError) Value() float64 {
	if e.final {
		return e.last
	}
	return e.max
}

func (e *ExactError) Reset() {
	e.y0 = nil
	e.last = 0
	e.max = 0
	e.samples = 0
}
