// Package history stores a rolling window of solution vectors for
// multistep time integration.
//
// Values are indexed [slot][variable]. Slot 0 is the newest; Shift ages
// every slot and discards what falls off the end.
package history

import (
	"fmt"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/linalg"
)

// History is a depth×nvars buffer with a per-variable pin mask.
type History struct {
	nvars  int
	depth  int
	values []float64
	pinned []bool
	filled int
}

// New allocates a zero-filled history. Both nvars and depth must be ≥ 1.
func New(nvars, depth int) (*History, error) {
	if nvars < 1 || depth < 1 {
		return nil, fmt.Errorf("history.New(%d vars, depth %d): %w", nvars, depth, dynamo.ErrInvalidSize)
	}
	return &History{
		nvars:  nvars,
		depth:  depth,
		values: make([]float64, nvars*depth),
		pinned: make([]bool, nvars),
	}, nil
}

// NewWithInitial allocates a history and writes y0 into slot 0.
func NewWithInitial(y0 []float64, depth int) (*History, error) {
	h, err := New(len(y0), depth)
	if err != nil {
		return nil, err
	}
	copy(h.values, y0)
	h.filled = 1
	return h, nil
}

// Vars returns the number of variables per slot.
func (h *History) Vars() int { return h.nvars }

// Depth returns the number of retained slots.
func (h *History) Depth() int { return h.depth }

// Filled returns one past the oldest slot holding a written value, capped
// at Depth. Shift ages it along with the data.
func (h *History) Filled() int { return h.filled }

// MarkFilled records that slots [0, n) hold meaningful values.
func (h *History) MarkFilled(n int) {
	if n > h.depth {
		n = h.depth
	}
	if n > h.filled {
		h.filled = n
	}
}

func (h *History) check(op string, i, slot int) error {
	if linalg.RangeChecking() && (i < 0 || i >= h.nvars || slot < 0 || slot >= h.depth) {
		return dynamo.Errorf(dynamo.KindRangeError, op, "variable %d slot %d outside %d vars x %d slots", i, slot, h.nvars, h.depth)
	}
	return nil
}

// row slices one slot; out-of-range indices panic when checks are off.
func (h *History) row(slot int) []float64 {
	return h.values[slot*h.nvars : (slot+1)*h.nvars]
}

// Value reads variable i at slot.
func (h *History) Value(i, slot int) (float64, error) {
	if err := h.check("History.Value", i, slot); err != nil {
		return 0, err
	}
	return h.row(slot)[i], nil
}

// SetValue writes variable i at slot.
func (h *History) SetValue(i, slot int, v float64) error {
	if err := h.check("History.SetValue", i, slot); err != nil {
		return err
	}
	h.row(slot)[i] = v
	return nil
}

// Ptr returns a mutable reference to variable i at slot.
func (h *History) Ptr(i, slot int) (*float64, error) {
	if err := h.check("History.Ptr", i, slot); err != nil {
		return nil, err
	}
	return &h.row(slot)[i], nil
}

// Row returns a borrowed view of one slot. Writes through the view land in
// the history; the view is invalidated in meaning (not memory) by Shift.
func (h *History) Row(slot int) (*linalg.Vector, error) {
	if slot < 0 || slot >= h.depth {
		return nil, dynamo.Errorf(dynamo.KindRangeError, "History.Row", "slot %d outside %d slots", slot, h.depth)
	}
	return linalg.ViewVector(h.values[slot*h.nvars : (slot+1)*h.nvars]), nil
}

// Slot returns a copy of one slot.
func (h *History) Slot(slot int) (dynamo.State, error) {
	r, err := h.Row(slot)
	if err != nil {
		return nil, err
	}
	return dynamo.State(r.Data()).Clone(), nil
}

// SetRow copies v into slot and counts the slot as filled.
func (h *History) SetRow(slot int, v []float64) error {
	if slot < 0 || slot >= h.depth {
		return dynamo.Errorf(dynamo.KindRangeError, "History.SetRow", "slot %d outside %d slots", slot, h.depth)
	}
	if len(v) != h.nvars {
		return dynamo.Errorf(dynamo.KindDimensionMismatch, "History.SetRow", "%d values for %d vars", len(v), h.nvars)
	}
	copy(h.values[slot*h.nvars:(slot+1)*h.nvars], v)
	h.MarkFilled(slot + 1)
	return nil
}

// Shift moves slot t to slot t+n for every t, dropping the slots that fall
// past the end. Vacated slots keep their old contents until overwritten;
// pinned variables are shifted like any other.
func (h *History) Shift(n int) {
	if n <= 0 {
		return
	}
	if n >= h.depth {
		h.filled = 0
		return
	}
	for t := h.depth - 1; t >= n; t-- {
		copy(h.values[t*h.nvars:(t+1)*h.nvars], h.values[(t-n)*h.nvars:(t-n+1)*h.nvars])
	}
	if h.filled > 0 {
		h.filled = min(h.filled+n, h.depth)
	}
}

// Pin excludes variable i from solver updates.
func (h *History) Pin(i int) error {
	if i < 0 || i >= h.nvars {
		return dynamo.Errorf(dynamo.KindRangeError, "History.Pin", "variable %d outside %d vars", i, h.nvars)
	}
	h.pinned[i] = true
	return nil
}

// Unpin makes variable i free again.
func (h *History) Unpin(i int) error {
	if i < 0 || i >= h.nvars {
		return dynamo.Errorf(dynamo.KindRangeError, "History.Unpin", "variable %d outside %d vars", i, h.nvars)
	}
	h.pinned[i] = false
	return nil
}

func (h *History) IsPinned(i int) bool {
	return i >= 0 && i < h.nvars && h.pinned[i]
}

func (h *History) PinAll() {
	for i := range h.pinned {
		h.pinned[i] = true
	}
}

func (h *History) UnpinAll() {
	for i := range h.pinned {
		h.pinned[i] = false
	}
}

// PinMask returns a copy of the pin status, or nil if nothing is pinned.
func (h *History) PinMask() []bool {
	pinned := false
	for _, p := range h.pinned {
		pinned = pinned || p
	}
	if !pinned {
		return nil
	}
	m := make([]bool, h.nvars)
	copy(m, h.pinned)
	return m
}

// Clone returns a deep copy including pin status.
func (h *History) Clone() *History {
	c := &History{
		nvars:  h.nvars,
		depth:  h.depth,
		values: make([]float64, len(h.values)),
		pinned: make([]bool, len(h.pinned)),
		filled: h.filled,
	}
	copy(c.values, h.values)
	copy(c.pinned, h.pinned)
	return c
}

// CopyFrom assigns src into h; shapes must match.
func (h *History) CopyFrom(src *History) error {
	if h.nvars != src.nvars || h.depth != src.depth {
		return dynamo.Errorf(dynamo.KindDimensionMismatch, "History.CopyFrom",
			"%d vars x %d slots vs %d vars x %d slots", h.nvars, h.depth, src.nvars, src.depth)
	}
	copy(h.values, src.values)
	copy(h.pinned, src.pinned)
	h.filled = src.filled
	return nil
}
