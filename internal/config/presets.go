package config

import (
	"math"
	"sort"
)

func preset(system, integrator string, t1 float64, y0 []float64, params map[string]float64) *Config {
	cfg := DefaultConfig()
	cfg.System = system
	cfg.Integrator = integrator
	cfg.T1 = t1
	cfg.InitialState = y0
	cfg.Params = params
	return cfg
}

var Presets = map[string]map[string]*Config{
	"lorenz": {
		"classic": preset("lorenz", "dopri54", 50, []float64{1, 1, 1}, nil),
		"periodic": preset("lorenz", "dopri54", 50, []float64{1, 1, 1},
			map[string]float64{"rho": 99.96}),
		"stable": preset("lorenz", "adams-moulton", 30, []float64{1, 1, 1},
			map[string]float64{"rho": 10}),
	},
	"rossler": {
		"chaos":    preset("rossler", "dopri54", 200, []float64{1, 1, 1}, nil),
		"period-2": preset("rossler", "dopri54", 200, []float64{1, 1, 1}, map[string]float64{"c": 4}),
	},
	"vanderpol": {
		"weak":  preset("vanderpol", "adams-bashforth", 40, []float64{0.5, 0}, map[string]float64{"mu": 0.3}),
		"stiff": preset("vanderpol", "dopri54", 40, []float64{2, 0}, map[string]float64{"mu": 8}),
	},
	"pendulum": {
		"small":    preset("pendulum", "rk4", 20, []float64{0.2, 0}, map[string]float64{"damping": 0}),
		"large":    preset("pendulum", "rk4", 20, []float64{2.5, 0}, map[string]float64{"damping": 0}),
		"spinning": preset("pendulum", "dopri54", 30, []float64{0.1, 8}, nil),
	},
	"duffing": {
		"chaos":    preset("duffing", "dopri54", 200, []float64{1, 0, 0}, nil),
		"periodic": preset("duffing", "dopri54", 200, []float64{1, 0, 0}, map[string]float64{"gamma": 0.2}),
	},
	"double_pendulum": {
		"chaos":  preset("double_pendulum", "dopri54", 30, []float64{2 * math.Pi / 3, math.Pi / 2, 0, 0}, nil),
		"gentle": preset("double_pendulum", "dopri54", 30, []float64{0.1, 0.1, 0, 0}, nil),
	},
	"decay": {
		"unit": preset("decay", "rk4", 1, []float64{1}, map[string]float64{"k": 1}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(system, name string) *Config {
	systemPresets, ok := Presets[system]
	if !ok {
		return nil
	}
	cfg, ok := systemPresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(system string) []string {
	systemPresets, ok := Presets[system]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(systemPresets))
	for name := range systemPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
