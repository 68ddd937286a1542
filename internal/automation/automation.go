// Package automation runs scripted batches of integrations: scenarios of
// sequential runs read from YAML, and Monte Carlo ensembles over perturbed
// initial states.
package automation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/odesim/internal/config"
	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/experiment"
	"github.com/san-kum/odesim/internal/storage"
)

var ErrEmptyScenario = errors.New("automation: scenario has no steps")

// Scenario is a named list of runs. Each step starts from the default
// configuration, or from a preset when one is named, and any other keys of
// the step override it.
type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Steps       []yaml.Node `yaml:"steps"`
}

// stepHeader holds the step keys that are not part of config.Config.
type stepHeader struct {
	Name        string `yaml:"name"`
	System      string `yaml:"system"`
	Preset      string `yaml:"preset"`
	Variational bool   `yaml:"variational"`
}

// Step is a resolved scenario step.
type Step struct {
	Name        string
	Config      *config.Config
	Sensitivity bool
}

// Outcome is the result of one scenario step. RunID is empty when the run
// was not stored.
type Outcome struct {
	Step   Step
	RunID  string
	Result *experiment.Result
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("automation: parse scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, ErrEmptyScenario
	}
	return &sc, nil
}

// Resolve expands every step into a validated configuration.
func (sc *Scenario) Resolve() ([]Step, error) {
	steps := make([]Step, 0, len(sc.Steps))
	for i := range sc.Steps {
		node := &sc.Steps[i]
		var h stepHeader
		if err := node.Decode(&h); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}

		cfg := config.DefaultConfig()
		if h.Preset != "" {
			if h.System == "" {
				return nil, fmt.Errorf("step %d: preset %q needs a system: %w", i+1, h.Preset, config.ErrInvalidConfig)
			}
			if cfg = config.GetPreset(h.System, h.Preset); cfg == nil {
				return nil, fmt.Errorf("step %d: unknown preset %s/%s", i+1, h.System, h.Preset)
			}
		}
		if err := node.Decode(cfg); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}

		name := h.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", cfg.System, i+1)
		}
		steps = append(steps, Step{Name: name, Config: cfg, Sensitivity: h.Variational})
	}
	return steps, nil
}

// RunScenario executes the steps in order, stopping at the first failure.
// Results are saved to st when it is non-nil.
func RunScenario(ctx context.Context, sc *Scenario, reg *experiment.Registry, st *storage.Store, logger log.Logger) ([]Outcome, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	steps, err := sc.Resolve()
	if err != nil {
		return nil, err
	}

	out := make([]Outcome, 0, len(steps))
	for i, step := range steps {
		level.Info(logger).Log("msg", "scenario step", "scenario", sc.Name, "step", i+1, "of", len(steps), "name", step.Name)

		exp, err := experiment.New(step.Config, reg, logger)
		if err != nil {
			return out, fmt.Errorf("step %s: %w", step.Name, err)
		}
		if step.Sensitivity {
			if err := exp.EnableSensitivity(); err != nil {
				return out, fmt.Errorf("step %s: %w", step.Name, err)
			}
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return out, fmt.Errorf("step %s: %w", step.Name, err)
		}

		o := Outcome{Step: step, Result: res}
		if st != nil {
			if o.RunID, err = st.Save(res.Metadata(), step.Config, res.Times, res.Rows()); err != nil {
				return out, fmt.Errorf("step %s: save: %w", step.Name, err)
			}
		}
		out = append(out, o)
	}
	return out, nil
}

// MonteCarloConfig describes an ensemble of runs of Base whose initial
// states are perturbed uniformly by up to Perturbation per component.
type MonteCarloConfig struct {
	Base         *config.Config
	Perturbation float64
	Trials       int
	Seed         int64
	// Bound marks a trial unstable when any final component exceeds it.
	Bound float64
	// Workers caps concurrent trials; zero means GOMAXPROCS.
	Workers int
}

type MonteCarloTrial struct {
	ID      int
	Initial dynamo.State
	Final   dynamo.State
	Stable  bool
}

// RunMonteCarlo runs the trials concurrently. Initial states are drawn up
// front so a fixed seed reproduces the ensemble regardless of scheduling.
func RunMonteCarlo(ctx context.Context, mc MonteCarloConfig, reg *experiment.Registry, logger log.Logger) ([]MonteCarloTrial, error) {
	if mc.Base == nil || mc.Trials <= 0 {
		return nil, fmt.Errorf("automation: monte carlo needs a base config and trials > 0: %w", config.ErrInvalidConfig)
	}
	if err := mc.Base.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	bound := mc.Bound
	if bound <= 0 {
		bound = 1e6
	}

	base := dynamo.State(mc.Base.InitialState)
	if len(base) == 0 {
		sys, err := reg.GetSystem(mc.Base.System)
		if err != nil {
			return nil, err
		}
		base = sys.DefaultState()
	}

	seed := mc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	trials := make([]MonteCarloTrial, mc.Trials)
	for i := range trials {
		y0 := base.Clone()
		for j := range y0 {
			y0[j] += (2*rng.Float64() - 1) * mc.Perturbation
		}
		trials[i] = MonteCarloTrial{ID: i, Initial: y0}
	}

	workers := mc.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trials {
		g.Go(func() error {
			cfg := mc.Base.Clone()
			cfg.InitialState = trials[i].Initial.Clone()
			cfg.Samples = 1
			exp, err := experiment.New(cfg, reg, log.NewNopLogger())
			if err != nil {
				return err
			}
			res, err := exp.Run(ctx)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			final := res.States[len(res.States)-1]
			trials[i].Final = final
			trials[i].Stable = bounded(final, bound)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stable, unstable := MonteCarloStats(trials)
	level.Info(logger).Log("msg", "monte carlo finished", "system", mc.Base.System, "trials", mc.Trials,
		"stable", stable, "unstable", unstable)
	return trials, nil
}

func bounded(y dynamo.State, bound float64) bool {
	for _, v := range y {
		if math.IsNaN(v) || math.Abs(v) > bound {
			return false
		}
	}
	return true
}

func MonteCarloStats(trials []MonteCarloTrial) (stable, unstable int) {
	for _, t := range trials {
		if t.Stable {
			stable++
		} else {
			unstable++
		}
	}
	return stable, unstable
}
