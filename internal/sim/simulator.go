// Package sim drives a Stepper over a fixed-step initial value problem,
// recording states and retrying unconverged implicit steps with smaller
// substeps.
package sim

import (
	"context"
	"log/slog"
	"math"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/history"
	"github.com/san-kum/numode/internal/integrators"
)

type Simulator struct {
	sys       dynamo.System
	stepper   integrators.Stepper
	metrics   []Metric
	observers []Observer
	log       *slog.Logger
}

func New(sys dynamo.System, stepper integrators.Stepper) *Simulator {
	return &Simulator{
		sys:     sys,
		stepper: stepper,
		log:     slog.New(slog.DiscardHandler),
	}
}

// WithLogger sets the logger for retry and failure records.
func (s *Simulator) WithLogger(l *slog.Logger) *Simulator {
	if l != nil {
		s.log = l
	}
	return s
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) newHistory(y0 dynamo.State, cfg Config) (*history.History, error) {
	if len(y0) != s.sys.Dim() {
		return nil, dynamo.Errorf(dynamo.KindDimensionMismatch, "sim.Run", "initial value has %d entries, system has %d", len(y0), s.sys.Dim())
	}
	hist, err := history.NewWithInitial(y0, max(s.stepper.HistoryDepth(), cfg.HistoryDepth, 1))
	if err != nil {
		return nil, err
	}
	for _, i := range cfg.Pinned {
		if err := hist.Pin(i); err != nil {
			return nil, err
		}
	}
	return hist, nil
}

// Run integrates from y0 at cfg.T0 for cfg.Duration. On a step failure the
// states recorded so far are returned with a *dynamo.SimulationError.
func (s *Simulator) Run(ctx context.Context, y0 dynamo.State, cfg Config) (*Result, error) {
	result := &Result{Method: s.stepper.Name(), Metrics: make(map[string]float64)}
	err := s.run(ctx, y0, cfg, func(step int, t float64, y dynamo.State, last bool) bool {
		if !last && cfg.Every > 1 && step%cfg.Every != 0 {
			return true
		}
		result.Times = append(result.Times, t)
		result.States = append(result.States, y.Clone())
		return true
	}, result)
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	if c, ok := s.stepper.(dynamo.Counter); ok {
		result.Evaluations = c.Evaluations()
	}
	return result, err
}

// RunWithCallback integrates like Run without recording states. The run
// stops early, without error, when callback returns false.
func (s *Simulator) RunWithCallback(ctx context.Context, y0 dynamo.State, cfg Config, callback func(t float64, y dynamo.State) bool) error {
	return s.run(ctx, y0, cfg, func(_ int, t float64, y dynamo.State, _ bool) bool {
		return callback(t, y)
	}, &Result{})
}

func (s *Simulator) run(ctx context.Context, y0 dynamo.State, cfg Config, record func(int, float64, dynamo.State, bool) bool, result *Result) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	hist, err := s.newHistory(y0, cfg)
	if err != nil {
		return err
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	emit := func(step int, t float64, last bool) (bool, error) {
		y, err := hist.Slot(0)
		if err != nil {
			return false, err
		}
		for _, m := range s.metrics {
			m.Observe(t, y)
		}
		for _, o := range s.observers {
			o.OnStep(step, t, y)
		}
		return record(step, t, y, last), nil
	}

	if cont, err := emit(0, cfg.T0, !cfg.Adaptive && steps == 0); err != nil || !cont {
		return err
	}
	if cfg.Adaptive {
		return s.runAdaptive(ctx, hist, cfg, emit, result)
	}
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t := cfg.T0 + float64(i)*cfg.Dt
		retries, err := s.advance(hist, t, cfg.Dt, cfg.MaxHalvings)
		result.Retries += retries
		if err != nil {
			s.log.Warn("step failed", slog.Int("step", i+1), slog.Float64("t", t), slog.Any("err", err))
			return &dynamo.SimulationError{Step: i + 1, Time: t, H: cfg.Dt, Wrapped: err}
		}
		if cfg.ValidateState {
			if y, _ := hist.Slot(0); !y.IsValid() {
				return &dynamo.SimulationError{Step: i + 1, Time: t + cfg.Dt, H: cfg.Dt,
					Wrapped: dynamo.Errorf(dynamo.KindDiverged, "sim.Run", "state is not finite")}
			}
		}
		result.StepsTaken++

		cont, err := emit(i+1, cfg.T0+float64(i+1)*cfg.Dt, i+1 == steps)
		if err != nil || !cont {
			return err
		}
	}
	return nil
}

// runAdaptive lets the stepper's error estimate choose each step. The last
// step is shortened to land on T0+Duration.
func (s *Simulator) runAdaptive(ctx context.Context, hist *history.History, cfg Config, emit func(int, float64, bool) (bool, error), result *Result) error {
	a, ok := s.stepper.(integrators.Adaptive)
	if !ok {
		return dynamo.Errorf(dynamo.KindNotConfigured, "sim.Run", "%s has no error estimate for adaptive stepping", s.stepper.Name())
	}
	control := cfg.Control
	if control == nil {
		control = integrators.NewProportional()
	}
	maxDt := cfg.MaxDt
	if maxDt == 0 {
		maxDt = cfg.Duration
	}
	clamp := func(h float64) float64 { return math.Min(maxDt, math.Max(cfg.MinDt, h)) }

	end := cfg.T0 + cfg.Duration
	eps := 1e-12 * math.Max(1, math.Abs(end))
	t, h := cfg.T0, clamp(cfg.Dt)
	y := make([]float64, hist.Vars())
	for step := 1; end-t > eps; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		hh := math.Min(h, end-t)
		est, err := a.Trial(s.sys, hh, t, hist, y)
		if err != nil {
			return &dynamo.SimulationError{Step: step, Time: t, H: hh, Wrapped: err}
		}
		next := clamp(control.Next(est, cfg.Tolerance, hh, a.Order()))
		if !(est <= cfg.Tolerance) && hh > cfg.MinDt {
			result.Rejected++
			s.log.Debug("step rejected", slog.Float64("t", t), slog.Float64("h", hh), slog.Float64("error", est))
			h = next
			continue
		}

		if err := integrators.Commit(hist, y); err != nil {
			return err
		}
		t += hh
		if end-t <= eps {
			t = end
		}
		if cfg.ValidateState {
			if cur, _ := hist.Slot(0); !cur.IsValid() {
				return &dynamo.SimulationError{Step: step, Time: t, H: hh,
					Wrapped: dynamo.Errorf(dynamo.KindDiverged, "sim.Run", "state is not finite")}
			}
		}
		result.StepsTaken++
		if cont, err := emit(step, t, t == end); err != nil || !cont {
			return err
		}
		step++
		h = next
	}
	return nil
}

// advance takes one step of size h. A step that fails to converge is redone
// as two half steps on a private history seeded with the current value, up
// to budget halvings deep, and the end value is committed to hist so its
// spacing stays uniform.
func (s *Simulator) advance(hist *history.History, t, h float64, budget int) (int, error) {
	err := s.stepper.Step(s.sys, h, t, hist)
	if err == nil || !dynamo.Recoverable(err) || budget == 0 {
		return 0, err
	}
	s.log.Debug("halving step", slog.Float64("t", t), slog.Float64("h", h/2))

	yn, serr := hist.Slot(0)
	if serr != nil {
		return 0, serr
	}
	sub := hist.Clone()
	sub.Shift(sub.Depth())
	if serr := sub.SetRow(0, yn); serr != nil {
		return 0, serr
	}

	retries := 1
	for k := 0; k < 2; k++ {
		n, err := s.advance(sub, t+float64(k)*h/2, h/2, budget-1)
		retries += n
		if err != nil {
			return retries, err
		}
	}
	y, serr := sub.Slot(0)
	if serr != nil {
		return retries, serr
	}
	hist.Shift(1)
	return retries, hist.SetRow(0, y)
}
