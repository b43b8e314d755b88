// Package experiment turns a config.Config into a wired simulator run.
package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/numode/internal/config"
	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/integrators"
	"github.com/san-kum/numode/internal/newton"
	"github.com/san-kum/numode/internal/sim"
)

// NewtonTunable is implemented by the implicit steppers.
type NewtonTunable interface {
	Newton() *newton.Solver
	SetNewtonOptions(opts newton.Options)
}

type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	log       *slog.Logger
	model     dynamo.Model
	stepper   integrators.Stepper
	simulator *sim.Simulator
}

func New(cfg *config.Config, registry *Registry) *Experiment {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Experiment{
		cfg:      cfg,
		registry: registry,
		log:      slog.New(slog.DiscardHandler),
	}
}

// WithLogger routes simulator and Newton records to l.
func (e *Experiment) WithLogger(l *slog.Logger) *Experiment {
	if l != nil {
		e.log = l
	}
	return e
}

// Setup resolves the model and method, applies parameters and solver
// overrides, and attaches the model's default metrics.
func (e *Experiment) Setup() error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	model, err := e.registry.GetModel(e.cfg.Model)
	if err != nil {
		return err
	}
	if err := e.cfg.ApplyParams(model); err != nil {
		return err
	}
	stepper, err := e.registry.GetStepper(e.cfg.Method)
	if err != nil {
		return err
	}
	if nt, ok := stepper.(NewtonTunable); ok {
		opts, err := e.cfg.NewtonOptions(nt.Newton().Options())
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		opts.Logger = e.log
		nt.SetNewtonOptions(opts)
	}
	if pc, ok := stepper.(*integrators.PredictorCorrector); ok {
		e.cfg.ApplyCorrector(pc)
	}
	if e.cfg.Adaptive != nil {
		if _, ok := stepper.(integrators.Adaptive); !ok {
			return fmt.Errorf("method %s has no error estimate for adaptive stepping", e.cfg.Method)
		}
	}

	e.model = model
	e.stepper = stepper
	e.simulator = sim.New(model, stepper).WithLogger(e.log)
	for _, m := range e.registry.DefaultMetrics(model) {
		e.simulator.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	y0 := e.cfg.InitialState(e.model.DefaultState())
	e.log.Info("run",
		slog.String("model", e.cfg.Model),
		slog.String("method", e.cfg.Method),
		slog.Float64("dt", e.cfg.Dt),
		slog.Float64("duration", e.cfg.Duration))
	return e.simulator.Run(ctx, y0, e.cfg.SimConfig())
}

func (e *Experiment) Model() dynamo.Model { return e.model }

func (e *Experiment) Stepper() integrators.Stepper { return e.stepper }

// Simulator returns the underlying simulator for adding observers.
func (e *Experiment) Simulator() *sim.Simulator { return e.simulator }
