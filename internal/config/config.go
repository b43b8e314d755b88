package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/integrators"
	"github.com/san-kum/numode/internal/newton"
	"github.com/san-kum/numode/internal/sim"
)

const (
	DefaultDt          = 0.01
	DefaultDuration    = 10.0
	DefaultMaxHalvings = 4

	DefaultTolerance = 1e-6
	DefaultMinDt     = 1e-6
)

type Config struct {
	Model       string             `yaml:"model"`
	Method      string             `yaml:"method"`
	Dt          float64            `yaml:"dt"`
	Duration    float64            `yaml:"duration"`
	T0          float64            `yaml:"t0,omitempty"`
	Y0          []float64          `yaml:"y0,omitempty"`
	Params      map[string]float64 `yaml:"params,omitempty"`
	Pinned      []int              `yaml:"pinned,omitempty"`
	MaxHalvings int                `yaml:"max_halvings"`
	Every       int                `yaml:"every,omitempty"`
	Newton      NewtonConfig       `yaml:"newton"`
	Corrector   CorrectorConfig    `yaml:"corrector,omitempty"`
	Adaptive    *AdaptiveConfig    `yaml:"adaptive,omitempty"`
}

// CorrectorConfig overrides the predictor-corrector defaults. Zero values
// leave the method default in place.
type CorrectorConfig struct {
	MaxIterations int     `yaml:"max_iterations,omitempty"`
	Tolerance     float64 `yaml:"tolerance,omitempty"`
	Fixed         bool    `yaml:"fixed,omitempty"`
}

// AdaptiveConfig turns on error-controlled step sizes for methods with an
// embedded error estimate. Dt becomes the first step tried.
type AdaptiveConfig struct {
	Tolerance float64 `yaml:"tolerance"`
	MinDt     float64 `yaml:"min_dt"`
	MaxDt     float64 `yaml:"max_dt,omitempty"`
	Control   string  `yaml:"control,omitempty"`
}

func DefaultAdaptive() *AdaptiveConfig {
	return &AdaptiveConfig{Tolerance: DefaultTolerance, MinDt: DefaultMinDt, Control: "proportional"}
}

// NewtonConfig overrides the implicit method's solver defaults. Zero values
// and empty strings leave the method default in place.
type NewtonConfig struct {
	AbsTol        float64 `yaml:"abs_tol,omitempty"`
	RelTol        float64 `yaml:"rel_tol,omitempty"`
	Mode          string  `yaml:"mode,omitempty"`
	Norm          string  `yaml:"norm,omitempty"`
	MaxIterations int     `yaml:"max_iterations,omitempty"`
	MaxResidual   float64 `yaml:"max_residual,omitempty"`
	ReuseJacobian bool    `yaml:"reuse_jacobian,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:       "decay",
		Method:      "bdf2",
		Dt:          DefaultDt,
		Duration:    DefaultDuration,
		MaxHalvings: DefaultMaxHalvings,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy, so presets can be modified safely.
func (c *Config) Clone() *Config {
	out := *c
	out.Y0 = append([]float64(nil), c.Y0...)
	out.Pinned = append([]int(nil), c.Pinned...)
	if c.Adaptive != nil {
		a := *c.Adaptive
		out.Adaptive = &a
	}
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return &out
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("config: model is required")
	}
	if c.Method == "" {
		return fmt.Errorf("config: method is required")
	}
	if err := c.SimConfig().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Newton.Mode != "" {
		if _, err := newton.ParseMode(c.Newton.Mode); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.Newton.Norm != "" {
		if _, err := newton.ParseNorm(c.Newton.Norm); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.Adaptive != nil {
		if _, err := integrators.ParseStepControl(c.Adaptive.Control); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.Corrector.MaxIterations < 0 || c.Corrector.Tolerance < 0 {
		return fmt.Errorf("config: corrector settings must be non-negative")
	}
	return nil
}

// InitialState returns Y0 when set, otherwise def.
func (c *Config) InitialState(def dynamo.State) dynamo.State {
	if len(c.Y0) > 0 {
		return dynamo.State(c.Y0).Clone()
	}
	return def.Clone()
}

// ApplyParams sets every configured parameter on m. Unknown names are an
// error.
func (c *Config) ApplyParams(m any) error {
	if len(c.Params) == 0 {
		return nil
	}
	cm, ok := m.(dynamo.Configurable)
	if !ok {
		return fmt.Errorf("config: model %s has no parameters", c.Model)
	}
	known := cm.GetParams()
	for k, v := range c.Params {
		if _, ok := known[k]; !ok {
			return fmt.Errorf("config: model %s has no parameter %q", c.Model, k)
		}
		cm.SetParam(k, v)
	}
	return nil
}

func (c *Config) SimConfig() sim.Config {
	sc := sim.Config{
		Dt:            c.Dt,
		Duration:      c.Duration,
		T0:            c.T0,
		MaxHalvings:   c.MaxHalvings,
		ValidateState: true,
		Pinned:        c.Pinned,
		Every:         c.Every,
	}
	if a := c.Adaptive; a != nil {
		sc.Adaptive = true
		sc.Tolerance = a.Tolerance
		sc.MinDt = a.MinDt
		sc.MaxDt = a.MaxDt
		// an unknown name is reported by Validate
		sc.Control, _ = integrators.ParseStepControl(a.Control)
	}
	return sc
}

// ApplyCorrector layers the configured overrides on a predictor-corrector
// stepper.
func (c *Config) ApplyCorrector(pc *integrators.PredictorCorrector) {
	if c.Corrector.MaxIterations > 0 {
		pc.MaxIterations = c.Corrector.MaxIterations
	}
	if c.Corrector.Tolerance > 0 {
		pc.Tolerance = c.Corrector.Tolerance
	}
	if c.Corrector.Fixed {
		pc.FixedIterations = true
	}
}

// NewtonOptions layers the configured overrides on base.
func (c *Config) NewtonOptions(base newton.Options) (newton.Options, error) {
	n := c.Newton
	if n.AbsTol > 0 {
		base.AbsTol = n.AbsTol
	}
	if n.RelTol > 0 {
		base.RelTol = n.RelTol
	}
	if n.Mode != "" {
		m, err := newton.ParseMode(n.Mode)
		if err != nil {
			return base, err
		}
		base.Mode = m
	}
	if n.Norm != "" {
		nm, err := newton.ParseNorm(n.Norm)
		if err != nil {
			return base, err
		}
		base.Norm = nm
	}
	if n.MaxIterations > 0 {
		base.MaxIterations = n.MaxIterations
	}
	if n.MaxResidual > 0 {
		base.MaxResidual = n.MaxResidual
	}
	if n.ReuseJacobian {
		base.ReuseJacobian = true
	}
	return base, nil
}
