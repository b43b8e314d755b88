package sim

import (
	"fmt"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/integrators"
)

// Metric accumulates a scalar over the recorded states of a run.
type Metric interface {
	Name() string
	Observe(t float64, y dynamo.State)
	Value() float64
	Reset()
}

// Observer is notified of every committed step, including the initial
// value at step 0.
type Observer interface {
	OnStep(step int, t float64, y dynamo.State)
}

type Config struct {
	Dt       float64
	Duration float64
	T0       float64
	// HistoryDepth overrides the stepper's minimum depth when larger.
	HistoryDepth int
	// MaxHalvings bounds how often a step that failed to converge is
	// retried with half the step size. Zero disables retries.
	MaxHalvings int
	// ValidateState stops the run at the first NaN or Inf.
	ValidateState bool
	// Pinned lists variables held at their initial value.
	Pinned []int
	// Every records one state per Every steps; 0 and 1 record all. The
	// final state is always recorded.
	Every int

	// Adaptive lets an integrators.Adaptive stepper pick its own step
	// sizes in [MinDt, MaxDt], starting from Dt. A step whose error
	// estimate exceeds Tolerance is retried unless it is already MinDt.
	Adaptive  bool
	Tolerance float64
	MinDt     float64
	// MaxDt of 0 means Duration.
	MaxDt float64
	// Control proposes step sizes; nil means integrators.NewProportional().
	Control integrators.StepControl
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      10.0,
		MaxHalvings:   4,
		ValidateState: true,
	}
}

func (c Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %g", c.Duration)
	}
	if c.MaxHalvings < 0 {
		return fmt.Errorf("max halvings must be non-negative, got %d", c.MaxHalvings)
	}
	if c.HistoryDepth < 0 {
		return fmt.Errorf("history depth must be non-negative, got %d", c.HistoryDepth)
	}
	if c.Adaptive {
		if c.Tolerance <= 0 {
			return fmt.Errorf("tolerance must be positive, got %g", c.Tolerance)
		}
		if c.MinDt <= 0 {
			return fmt.Errorf("min dt must be positive, got %g", c.MinDt)
		}
		if c.MaxDt != 0 && c.MaxDt < c.MinDt {
			return fmt.Errorf("max dt %g is below min dt %g", c.MaxDt, c.MinDt)
		}
	}
	return nil
}

type Result struct {
	Method      string
	Times       []float64
	States      []dynamo.State
	StepsTaken  int
	Retries     int
	Evaluations int
	Metrics     map[string]float64
	// Rejected counts adaptive attempts thrown away for a large error.
	Rejected int
}

// Final returns the last recorded state.
func (r *Result) Final() dynamo.State {
	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}

// Column extracts variable i from every recorded state.
func (r *Result) Column(i int) []float64 {
	out := make([]float64, 0, len(r.States))
	for _, s := range r.States {
		if i < len(s) {
			out = append(out, s[i])
		}
	}
	return out
}
