// Package metrics holds sim.Metric implementations for accuracy and
// stability studies.
package metrics

import (
	"math"

	"github.com/san-kum/numode/internal/dynamo"
)

// InvariantDrift tracks the largest relative change of a conserved quantity
// from its value at the first observed state. When the initial value is
// zero the absolute change is used.
type InvariantDrift struct {
	name     string
	inv      dynamo.Invariant
	initial  float64
	maxDrift float64
	samples  int
}

func NewInvariantDrift(inv dynamo.Invariant) *InvariantDrift {
	return &InvariantDrift{
		name: "invariant_drift",
		inv:  inv,
	}
}

func (d *InvariantDrift) Name() string { return d.name }

func (d *InvariantDrift) Observe(_ float64, y dynamo.State) {
	v := d.inv.Invariant(y)
	if d.samples == 0 {
		d.initial = v
	}
	d.samples++

	drift := math.Abs(v - d.initial)
	if d.initial != 0 {
		drift /= math.Abs(d.initial)
	}
	d.maxDrift = math.Max(d.maxDrift, drift)
}

func (d *InvariantDrift) Value() float64 { return d.maxDrift }

func (d *InvariantDrift) Reset() {
	d.initial = 0
	d.maxDrift = 0
	d.samples = 0
}
