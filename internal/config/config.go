package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultStep     = 0.01
	DefaultMinStep  = 1e-8
	DefaultMaxStep  = 1.0
	DefaultTol      = 1e-8
	DefaultNSteps   = 4
	DefaultDuration = 10.0
	DefaultSamples  = 500
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	System         string             `yaml:"system"`
	Integrator     string             `yaml:"integrator"`
	Step           float64            `yaml:"step"`
	MinStep        float64            `yaml:"min_step"`
	MaxStep        float64            `yaml:"max_step"`
	AbsTol         float64            `yaml:"abs_tol"`
	RelTol         float64            `yaml:"rel_tol"`
	NSteps         int                `yaml:"n_steps"`
	MaxEvaluations int                `yaml:"max_evaluations"`
	T0             float64            `yaml:"t0"`
	T1             float64            `yaml:"t1"`
	Samples        int                `yaml:"samples"`
	InitialState   []float64          `yaml:"initial_state,omitempty"`
	Params         map[string]float64 `yaml:"params,omitempty"`
	Sensitivity    SensitivityConfig  `yaml:"sensitivity"`
}

// SensitivityConfig selects the parameters whose Jacobians are computed by
// the sens command.
type SensitivityConfig struct {
	Params     []string  `yaml:"params,omitempty"`
	Central    bool      `yaml:"central"`
	StateSteps []float64 `yaml:"state_steps,omitempty"`
	// Analytic uses the system's own Jacobian when it has one.
	Analytic bool `yaml:"analytic"`
}

func DefaultConfig() *Config {
	return &Config{
		System:     "lorenz",
		Integrator: "dopri54",
		Step:       DefaultStep,
		MinStep:    DefaultMinStep,
		MaxStep:    DefaultMaxStep,
		AbsTol:     DefaultTol,
		RelTol:     DefaultTol,
		NSteps:     DefaultNSteps,
		T0:         0,
		T1:         DefaultDuration,
		Samples:    DefaultSamples,
		Sensitivity: SensitivityConfig{
			Analytic: true,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
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

// Validate checks the fields every integrator relies on.
func (c *Config) Validate() error {
	switch {
	case c.System == "":
		return fmt.Errorf("%w: no system", ErrInvalidConfig)
	case c.Integrator == "":
		return fmt.Errorf("%w: no integrator", ErrInvalidConfig)
	case c.T1 == c.T0:
		return fmt.Errorf("%w: empty interval [%g, %g]", ErrInvalidConfig, c.T0, c.T1)
	case c.Step <= 0:
		return fmt.Errorf("%w: step %g", ErrInvalidConfig, c.Step)
	case c.MinStep <= 0 || c.MaxStep < c.MinStep:
		return fmt.Errorf("%w: step bounds [%g, %g]", ErrInvalidConfig, c.MinStep, c.MaxStep)
	case c.AbsTol < 0 || c.RelTol < 0 || c.AbsTol+c.RelTol == 0:
		return fmt.Errorf("%w: tolerances %g/%g", ErrInvalidConfig, c.AbsTol, c.RelTol)
	case c.Samples < 1:
		return fmt.Errorf("%w: samples %d", ErrInvalidConfig, c.Samples)
	case c.MaxEvaluations < 0:
		return fmt.Errorf("%w: max evaluations %d", ErrInvalidConfig, c.MaxEvaluations)
	}
	return nil
}

// Clone returns a deep copy so presets are never mutated by callers.
func (c *Config) Clone() *Config {
	out := *c
	if c.InitialState != nil {
		out.InitialState = append([]float64(nil), c.InitialState...)
	}
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	out.Sensitivity.Params = append([]string(nil), c.Sensitivity.Params...)
	out.Sensitivity.StateSteps = append([]float64(nil), c.Sensitivity.StateSteps...)
	return &out
}
