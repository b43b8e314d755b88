package metrics

import (
	"math"

	"github.com/san-kum/numode/internal/dynamo"
)

// Stability is the fraction of observed states that are finite and bounded
// by ±limit in every entry.
type Stability struct {
	limit   float64
	bad     int
	samples int
}

func NewStability(limit float64) *Stability {
	return &Stability{limit: limit}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(_ float64, y dynamo.State) {
	s.samples++
	if !y.IsValid() || peak(y) > s.limit {
		s.bad++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1
	}
	return 1 - float64(s.bad)/float64(s.samples)
}

func (s *Stability) Reset() { s.bad, s.samples = 0, 0 }

// Peak is the largest |y_i| seen over a run. Non-finite entries are ignored.
type Peak struct {
	max float64
}

func NewPeak() *Peak { return &Peak{} }

func (p *Peak) Name() string { return "peak_abs" }

func (p *Peak) Observe(_ float64, y dynamo.State) {
	p.max = math.Max(p.max, peak(y))
}

func (p *Peak) Value() float64 { return p.max }

func (p *Peak) Reset() { p.max = 0 }

func peak(y dynamo.State) float64 {
	m := 0.0
	for _, v := range y {
		if a := math.Abs(v); a > m && !math.IsInf(a, 0) {
			m = a
		}
	}
	return m
}
