package linalg

import (
	"sync/atomic"

	"github.com/san-kum/numode/internal/dynamo"
)

var rangeChecking atomic.Bool

func init() {
	rangeChecking.Store(true)
}

// SetRangeChecking switches per-index bounds checks on or off for every
// container in the package. With checks off, At/Set/Ptr return no
// RangeError and an out-of-range index panics in the runtime bounds check;
// it never reaches a neighbouring element.
func SetRangeChecking(on bool) {
	rangeChecking.Store(on)
}

// RangeChecking reports whether per-index bounds checks are active.
func RangeChecking() bool {
	return rangeChecking.Load()
}

func rangeErr(op string, i, j, rows, cols int) error {
	if cols < 0 {
		return dynamo.Errorf(dynamo.KindRangeError, op, "index %d outside [0,%d)", i, rows)
	}
	return dynamo.Errorf(dynamo.KindRangeError, op, "index (%d,%d) outside %dx%d", i, j, rows, cols)
}

func shapeErr(op string, ar, ac, br, bc int) error {
	return dynamo.Errorf(dynamo.KindDimensionMismatch, op, "%dx%d vs %dx%d", ar, ac, br, bc)
}
