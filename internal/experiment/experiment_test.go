package experiment

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/numode/internal/config"
	"github.com/san-kum/numode/internal/integrators"
	"github.com/san-kum/numode/internal/models"
	"github.com/san-kum/numode/internal/newton"
)

func TestRegistryLists(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"adams_moulton_2", "adams_moulton_2_pc", "backward_euler", "backward_euler_pc",
		"bdf2", "euler", "rk4", "rk45", "rkf45"}, r.ListMethods())
	assert.Contains(t, r.ListModels(), "robertson")
	assert.IsIncreasing(t, r.ListModels())

	for _, name := range r.ListMethods() {
		s, err := r.GetStepper(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	for _, name := range r.ListModels() {
		m, err := r.GetModel(name)
		require.NoError(t, err)
		assert.Len(t, m.DefaultState(), m.Dim(), name)
	}

	_, err := r.GetModel("pendulum")
	assert.Error(t, err)
	_, err = r.GetStepper("verlet")
	assert.Error(t, err)
}

func TestDefaultMetrics(t *testing.T) {
	r := NewRegistry()
	names := func(model string) []string {
		m, err := r.GetModel(model)
		require.NoError(t, err)
		var out []string
		for _, metric := range r.DefaultMetrics(m) {
			out = append(out, metric.Name())
		}
		return out
	}
	assert.ElementsMatch(t, []string{"stability", "peak_abs", "max_error", "final_error"}, names("decay"))
	assert.ElementsMatch(t, []string{"stability", "peak_abs", "max_error", "final_error", "invariant_drift"}, names("oscillator"))
	assert.ElementsMatch(t, []string{"stability", "peak_abs"}, names("lorenz"))
}

func TestExperimentRun(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Duration = 1
	cfg.Params = map[string]float64{"k": 2}

	exp := New(cfg, nil)
	require.NoError(t, exp.Setup())
	assert.Equal(t, 2.0, exp.Model().(*models.Decay).K)

	res, err := exp.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bdf2", res.Method)
	assert.Equal(t, 100, res.StepsTaken)
	assert.InDelta(t, math.Exp(-2), res.Final()[0], 1e-3)
	assert.Less(t, res.Metrics["final_error"], 1e-3)
	assert.Equal(t, 1.0, res.Metrics["stability"])
}

func TestExperimentAppliesNewtonOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Method = "adams_moulton_2"
	cfg.Newton = config.NewtonConfig{Mode: "relative", MaxIterations: 3, AbsTol: 1e-6}

	exp := New(cfg, nil)
	require.NoError(t, exp.Setup())
	opts := exp.Stepper().(NewtonTunable).Newton().Options()
	assert.Equal(t, newton.RelativeAndAbsolute, opts.Mode)
	assert.Equal(t, 3, opts.MaxIterations)
	assert.Equal(t, 1e-6, opts.AbsTol)
}

func TestExperimentAdaptive(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Method = "rk45"
	cfg.Dt = 0.5
	cfg.Duration = 2
	cfg.Adaptive = config.DefaultAdaptive()

	exp := New(cfg, nil)
	require.NoError(t, exp.Setup())
	res, err := exp.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Times[len(res.Times)-1])
	assert.Greater(t, res.Rejected, 0)
	assert.InDelta(t, math.Exp(-2), res.Final()[0], 1e-5)

	cfg.Method = "bdf2"
	assert.Error(t, New(cfg, nil).Setup())
}

func TestExperimentAppliesCorrectorOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Method = "adams_moulton_2_pc"
	cfg.Corrector = config.CorrectorConfig{MaxIterations: 3, Tolerance: 1e-6, Fixed: true}

	exp := New(cfg, nil)
	require.NoError(t, exp.Setup())
	pc := exp.Stepper().(*integrators.PredictorCorrector)
	assert.Equal(t, 3, pc.MaxIterations)
	assert.Equal(t, 1e-6, pc.Tolerance)
	assert.True(t, pc.FixedIterations)
}

func TestExperimentErrors(t *testing.T) {
	_, err := New(config.DefaultConfig(), nil).Run(context.Background())
	assert.Error(t, err)

	cfg := config.DefaultConfig()
	cfg.Model = "nope"
	assert.Error(t, New(cfg, nil).Setup())

	cfg = config.DefaultConfig()
	cfg.Params = map[string]float64{"mass": 1}
	assert.Error(t, New(cfg, nil).Setup())

	cfg = config.DefaultConfig()
	cfg.Dt = 0
	assert.Error(t, New(cfg, nil).Setup())
}

func TestExperimentLogs(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.Duration = 0.1
	exp := New(cfg, nil).WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, exp.Setup())
	_, err := exp.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "model=decay")
}
