package experiment

import (
	"fmt"
	"sort"

	"github.com/go-kit/log"

	"github.com/san-kum/odesim/internal/config"
	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/integrators"
	"github.com/san-kum/odesim/internal/metrics"
	"github.com/san-kum/odesim/internal/physics"
)

// Model is a registered system: tunable parameters and a default start.
type Model interface {
	dynamo.System
	dynamo.ParameterizedSystem
	DefaultState() dynamo.State
}

type IntegratorFactory func(cfg *config.Config, logger log.Logger) (dynamo.Integrator, error)

type Registry struct {
	systems     map[string]func() Model
	integrators map[string]IntegratorFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		systems:     make(map[string]func() Model),
		integrators: make(map[string]IntegratorFactory),
	}

	r.systems["decay"] = func() Model { return physics.NewDecay(1) }
	r.systems["lorenz"] = func() Model { return physics.NewLorenz() }
	r.systems["rossler"] = func() Model { return physics.NewRossler() }
	r.systems["vanderpol"] = func() Model { return physics.NewVanDerPol() }
	r.systems["pendulum"] = func() Model { return physics.NewPendulum() }
	r.systems["duffing"] = func() Model { return physics.NewDuffing() }
	r.systems["double_pendulum"] = func() Model { return physics.NewDoublePendulum() }

	for _, name := range []string{"euler", "midpoint", "rk4", "3/8", "gill"} {
		tab, _ := integrators.TableauByName(name)
		r.integrators[name] = fixedStep(name, tab)
	}
	r.integrators["dopri54"] = func(cfg *config.Config, logger log.Logger) (dynamo.Integrator, error) {
		return integrators.NewDormandPrince54(cfg.MinStep, cfg.MaxStep, cfg.AbsTol, cfg.RelTol, options(cfg, logger)...)
	}
	r.integrators["adams-bashforth"] = func(cfg *config.Config, logger log.Logger) (dynamo.Integrator, error) {
		return integrators.NewAdamsBashforth(cfg.NSteps, cfg.MinStep, cfg.MaxStep, cfg.AbsTol, cfg.RelTol, options(cfg, logger)...)
	}
	r.integrators["adams-moulton"] = func(cfg *config.Config, logger log.Logger) (dynamo.Integrator, error) {
		return integrators.NewAdamsMoulton(cfg.NSteps, cfg.MinStep, cfg.MaxStep, cfg.AbsTol, cfg.RelTol, options(cfg, logger)...)
	}

	return r
}

func fixedStep(name string, tab integrators.Tableau) IntegratorFactory {
	return func(cfg *config.Config, logger log.Logger) (dynamo.Integrator, error) {
		return integrators.NewRungeKutta(name, tab, cfg.Step, options(cfg, logger)...)
	}
}

func options(cfg *config.Config, logger log.Logger) []integrators.Option {
	return []integrators.Option{
		integrators.WithLogger(logger),
		integrators.WithMaxEvaluations(cfg.MaxEvaluations),
	}
}

// RegisterSystem adds or replaces a system factory.
func (r *Registry) RegisterSystem(name string, fn func() Model) {
	r.systems[name] = fn
}

func (r *Registry) RegisterIntegrator(name string, fn IntegratorFactory) {
	r.integrators[name] = fn
}

func (r *Registry) GetSystem(name string) (Model, error) {
	fn, ok := r.systems[name]
	if !ok {
		return nil, fmt.Errorf("unknown system: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetIntegrator(name string, cfg *config.Config, logger log.Logger) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return fn(cfg, logger)
}

func (r *Registry) ListSystems() []string {
	return sortedKeys(r.systems)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns the step-handler metrics that apply to sys.
func (r *Registry) DefaultMetrics(sys dynamo.System) []metrics.Metric {
	ms := []metrics.Metric{
		metrics.NewStepSize(),
		metrics.NewStability(1e6),
	}
	if c, ok := sys.(metrics.Conserved); ok {
		ms = append(ms, metrics.NewEnergyDrift(c))
	}
	return ms
}
