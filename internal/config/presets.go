package config

import "sort"

var Presets = map[string]map[string]*Config{
	"decay": {
		"unit": {
			Model: "decay", Method: "bdf2", Dt: 0.1, Duration: 5.0,
		},
		"stiff": {
			Model: "decay", Method: "backward_euler", Dt: 0.1, Duration: 5.0,
			Params: map[string]float64{"k": 1000},
		},
	},
	"riccati": {
		"unit": {
			Model: "riccati", Method: "adams_moulton_2", Dt: 0.05, Duration: 10.0,
		},
	},
	"logistic": {
		"growth": {
			Model: "logistic", Method: "bdf2", Dt: 0.05, Duration: 15.0,
		},
	},
	"oscillator": {
		"long": {
			Model: "oscillator", Method: "adams_moulton_2", Dt: 0.05, Duration: 100.0,
		},
		"corrector": {
			Model: "oscillator", Method: "adams_moulton_2_pc", Dt: 0.01, Duration: 20.0,
			Corrector: CorrectorConfig{MaxIterations: 20},
		},
	},
	"vanderpol": {
		"classic": {
			Model: "vanderpol", Method: "rk4", Dt: 0.01, Duration: 20.0,
		},
		"stiff": {
			Model: "vanderpol", Method: "bdf2", Dt: 0.01, Duration: 200.0,
			Params: map[string]float64{"mu": 100},
			Newton: NewtonConfig{MaxIterations: 20},
		},
	},
	"lorenz": {
		"attractor": {
			Model: "lorenz", Method: "rk4", Dt: 0.005, Duration: 40.0,
		},
		"adaptive": {
			Model: "lorenz", Method: "rk45", Dt: 0.01, Duration: 40.0,
			Adaptive: &AdaptiveConfig{Tolerance: 1e-8, MinDt: 1e-6, MaxDt: 0.1},
		},
	},
	"lotka": {
		"cycle": {
			Model: "lotka", Method: "adams_moulton_2", Dt: 0.01, Duration: 50.0,
		},
	},
	"duffing": {
		"chaotic": {
			Model: "duffing", Method: "rk4", Dt: 0.01, Duration: 100.0,
		},
		"implicit": {
			Model: "duffing", Method: "adams_moulton_2", Dt: 0.01, Duration: 100.0,
			Newton: NewtonConfig{Mode: "relative"},
		},
	},
	"robertson": {
		"kinetics": {
			Model: "robertson", Method: "bdf2", Dt: 0.001, Duration: 10.0,
			Newton: NewtonConfig{Norm: "2"},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	out := cfg.Clone()
	out.MaxHalvings = DefaultMaxHalvings
	return out
}

// ListPresets returns the preset names for model in sorted order.
func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
