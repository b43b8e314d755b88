package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/integrators"
	"github.com/san-kum/numode/internal/metrics"
	"github.com/san-kum/numode/internal/models"
	"github.com/san-kum/numode/internal/sim"
)

type Registry struct {
	models   map[string]func() dynamo.Model
	steppers map[string]func() integrators.Stepper
}

func NewRegistry() *Registry {
	r := &Registry{
		models:   make(map[string]func() dynamo.Model),
		steppers: make(map[string]func() integrators.Stepper),
	}

	r.models["decay"] = func() dynamo.Model { return models.NewDecay() }
	r.models["riccati"] = func() dynamo.Model { return models.NewRiccati() }
	r.models["logistic"] = func() dynamo.Model { return models.NewLogistic() }
	r.models["oscillator"] = func() dynamo.Model { return models.NewOscillator() }
	r.models["vanderpol"] = func() dynamo.Model { return models.NewVanDerPol() }
	r.models["lorenz"] = func() dynamo.Model { return models.NewLorenz() }
	r.models["lotka"] = func() dynamo.Model { return models.NewLotkaVolterra() }
	r.models["robertson"] = func() dynamo.Model { return models.NewRobertson() }
	r.models["duffing"] = func() dynamo.Model { return models.NewDuffing() }

	r.steppers["euler"] = func() integrators.Stepper { return integrators.NewEuler() }
	r.steppers["rk4"] = func() integrators.Stepper { return integrators.NewRK4() }
	r.steppers["backward_euler"] = func() integrators.Stepper { return integrators.NewBackwardEuler() }
	r.steppers["bdf2"] = func() integrators.Stepper { return integrators.NewBDF2() }
	r.steppers["adams_moulton_2"] = func() integrators.Stepper { return integrators.NewAdamsMoulton2() }
	r.steppers["backward_euler_pc"] = func() integrators.Stepper { return integrators.NewBackwardEulerPC() }
	r.steppers["adams_moulton_2_pc"] = func() integrators.Stepper { return integrators.NewAdamsMoulton2PC() }
	r.steppers["rk45"] = func() integrators.Stepper { return integrators.NewRK45() }
	r.steppers["rkf45"] = func() integrators.Stepper { return integrators.NewRKF45() }

	return r
}

// RegisterModel adds or replaces a model factory.
func (r *Registry) RegisterModel(name string, fn func() dynamo.Model) { r.models[name] = fn }

// RegisterStepper adds or replaces a method factory.
func (r *Registry) RegisterStepper(name string, fn func() integrators.Stepper) {
	r.steppers[name] = fn
}

func (r *Registry) GetModel(name string) (dynamo.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetStepper(name string) (integrators.Stepper, error) {
	fn, ok := r.steppers[name]
	if !ok {
		return nil, fmt.Errorf("unknown method: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string { return sortedKeys(r.models) }

func (r *Registry) ListMethods() []string { return sortedKeys(r.steppers) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics picks the metrics a model supports: error against a
// closed form, drift of a conserved quantity, plus bound checks.
func (r *Registry) DefaultMetrics(m dynamo.Model) []sim.Metric {
	out := []sim.Metric{metrics.NewStability(1e6), metrics.NewPeak()}
	if ex, ok := m.(dynamo.Exact); ok {
		out = append(out, metrics.NewMaxError(ex), metrics.NewFinalError(ex))
	}
	if inv, ok := m.(dynamo.Invariant); ok {
		out = append(out, metrics.NewInvariantDrift(inv))
	}
	return out
}
