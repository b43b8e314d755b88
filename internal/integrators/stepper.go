// Package integrators advances an ODE system one fixed step at a time,
// reading the current value from slot 0 of a history container and writing
// the new value back there after shifting the older ones down.
package integrators

import (
	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/history"
)

// Stepper advances sys from t to t+h. On success slot 0 of hist holds the
// new value and the previous values have moved down one slot. On failure
// hist is left as it was.
type Stepper interface {
	Step(sys dynamo.System, h, t float64, hist *history.History) error
	Name() string
	// HistoryDepth is the minimum depth hist must have.
	HistoryDepth() int
}

func checkHistory(name string, sys dynamo.System, hist *history.History, depth int) error {
	if hist == nil || sys == nil {
		return dynamo.Errorf(dynamo.KindNotConfigured, name+".Step", "system and history are required")
	}
	if hist.Vars() != sys.Dim() {
		return dynamo.Errorf(dynamo.KindDimensionMismatch, name+".Step", "history has %d vars, system has %d", hist.Vars(), sys.Dim())
	}
	if hist.Depth() < depth {
		return dynamo.Errorf(dynamo.KindInsufficientHistory, name+".Step", "history depth %d, need %d", hist.Depth(), depth)
	}
	if hist.Filled() < 1 {
		return dynamo.Errorf(dynamo.KindInsufficientHistory, name+".Step", "history holds no current value")
	}
	return nil
}

// Commit shifts hist by one and writes y into slot 0, keeping pinned
// variables at their previous value.
func Commit(hist *history.History, y []float64) error {
	for i := range y {
		if hist.IsPinned(i) {
			v, err := hist.Value(i, 0)
			if err != nil {
				return err
			}
			y[i] = v
		}
	}
	hist.Shift(1)
	return hist.SetRow(0, y)
}
