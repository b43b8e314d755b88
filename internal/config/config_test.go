package config

import (
	"path/filepath"
	"testing"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/integrators"
	"github.com/san-kum/numode/internal/models"
	"github.com/san-kum/numode/internal/newton"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != "decay" {
		t.Errorf("expected model decay, got %s", cfg.Model)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("vanderpol", "stiff")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Params["mu"] != 100 {
		t.Errorf("expected mu 100, got %f", cfg.Params["mu"])
	}

	cfg.Params["mu"] = 1
	if again := GetPreset("vanderpol", "stiff"); again.Params["mu"] != 100 {
		t.Error("GetPreset returned a shared config")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	cfg := GetPreset("decay", "nonexistent")
	if cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}

	cfg = GetPreset("nonexistent", "unit")
	if cfg != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("decay")
	if len(presets) != 2 || presets[0] != "stiff" || presets[1] != "unit" {
		t.Errorf("expected sorted [stiff unit], got %v", presets)
	}

	presets = ListPresets("nonexistent")
	if presets != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestPresetsAreValid(t *testing.T) {
	for model := range Presets {
		for _, name := range ListPresets(model) {
			if err := GetPreset(model, name).Validate(); err != nil {
				t.Errorf("%s/%s: %v", model, name, err)
			}
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("vanderpol", "stiff")
	cfg.Y0 = []float64{1, 0.5}
	cfg.Pinned = []int{1}
	cfg.Newton.Mode = "absolute"

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != "vanderpol" || got.Method != "bdf2" || got.Params["mu"] != 100 {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if len(got.Y0) != 2 || got.Y0[1] != 0.5 || len(got.Pinned) != 1 {
		t.Errorf("round trip lost state: y0=%v pinned=%v", got.Y0, got.Pinned)
	}
	if got.Newton.MaxIterations != 20 || got.Newton.Mode != "absolute" {
		t.Errorf("round trip lost newton settings: %+v", got.Newton)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no model", func(c *Config) { c.Model = "" }},
		{"no method", func(c *Config) { c.Method = "" }},
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"negative duration", func(c *Config) { c.Duration = -1 }},
		{"bad mode", func(c *Config) { c.Newton.Mode = "sideways" }},
		{"bad norm", func(c *Config) { c.Newton.Norm = "7" }},
		{"bad step control", func(c *Config) {
			c.Adaptive = DefaultAdaptive()
			c.Adaptive.Control = "pid"
		}},
		{"zero tolerance", func(c *Config) {
			c.Adaptive = DefaultAdaptive()
			c.Adaptive.Tolerance = 0
		}},
		{"negative corrections", func(c *Config) { c.Corrector.MaxIterations = -1 }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestNewtonOptions(t *testing.T) {
	cfg := DefaultConfig()
	base := newton.DefaultOptions()

	got, err := cfg.NewtonOptions(base)
	if err != nil {
		t.Fatal(err)
	}
	if got != base {
		t.Errorf("empty overrides changed options: %+v", got)
	}

	cfg.Newton = NewtonConfig{AbsTol: 1e-10, Mode: "absolute", Norm: "2", MaxIterations: 3, ReuseJacobian: true}
	got, err = cfg.NewtonOptions(base)
	if err != nil {
		t.Fatal(err)
	}
	if got.AbsTol != 1e-10 || got.RelTol != base.RelTol || got.Mode != newton.AbsoluteOnly ||
		got.Norm != newton.Norm2 || got.MaxIterations != 3 || !got.ReuseJacobian {
		t.Errorf("overrides not applied: %+v", got)
	}
}

func TestInitialStateAndParams(t *testing.T) {
	cfg := DefaultConfig()
	def := dynamo.State{1}
	if s := cfg.InitialState(def); s[0] != 1 {
		t.Errorf("expected default state, got %v", s)
	}
	cfg.Y0 = []float64{3}
	if s := cfg.InitialState(def); s[0] != 3 {
		t.Errorf("expected configured state, got %v", s)
	}

	m := models.NewDecay()
	cfg.Params = map[string]float64{"k": 4}
	if err := cfg.ApplyParams(m); err != nil {
		t.Fatal(err)
	}
	if m.K != 4 {
		t.Errorf("expected k 4, got %f", m.K)
	}

	cfg.Params = map[string]float64{"nope": 1}
	if err := cfg.ApplyParams(m); err == nil {
		t.Error("expected error for unknown parameter")
	}
	if err := cfg.ApplyParams(models.NewRiccati()); err == nil {
		t.Error("expected error for model without parameters")
	}
}

func TestAdaptiveSimConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SimConfig().Adaptive {
		t.Error("fixed-step config reported adaptive")
	}

	cfg = GetPreset("lorenz", "adaptive")
	sc := cfg.SimConfig()
	if !sc.Adaptive || sc.Tolerance != 1e-8 || sc.MinDt != 1e-6 || sc.MaxDt != 0.1 {
		t.Errorf("adaptive settings not carried over: %+v", sc)
	}
	if _, ok := sc.Control.(integrators.Proportional); !ok {
		t.Errorf("expected proportional control by default, got %T", sc.Control)
	}

	cfg.Adaptive.Control = "half_double"
	if _, ok := cfg.SimConfig().Control.(integrators.HalfDouble); !ok {
		t.Error("half_double control not selected")
	}
	if again := GetPreset("lorenz", "adaptive"); again.Adaptive.Control != "" {
		t.Error("GetPreset shared the adaptive block")
	}

	path := filepath.Join(t.TempDir(), "adaptive.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Adaptive == nil || *got.Adaptive != *cfg.Adaptive {
		t.Errorf("round trip lost adaptive settings: %+v", got.Adaptive)
	}
}

func TestApplyCorrector(t *testing.T) {
	cfg := GetPreset("oscillator", "corrector")
	pc := integrators.NewAdamsMoulton2PC()
	cfg.ApplyCorrector(pc)
	if pc.MaxIterations != 20 || pc.Tolerance != integrators.DefaultCorrectorTolerance || pc.FixedIterations {
		t.Errorf("unexpected corrector settings: %+v", pc)
	}
}
