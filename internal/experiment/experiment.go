package experiment

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/config"
	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/metrics"
	"github.com/san-kum/odesim/internal/sensitivity"
	"github.com/san-kum/odesim/internal/storage"
	"github.com/san-kum/odesim/internal/trajectory"
)

// Result is the outcome of one run, sampled from the dense output.
type Result struct {
	Config      *config.Config
	Times       []float64
	States      []dynamo.State
	Steps       int
	Rejected    int
	Evaluations int
	Metrics     map[string]float64
	Elapsed     time.Duration

	// Set only when sensitivity is enabled.
	StateJacobian      *mat.Dense
	ParameterJacobians map[string][]float64
	SensitivityParams  []string
	Trajectory         *trajectory.Model
}

type Experiment struct {
	cfg       *config.Config
	logger    log.Logger
	system    Model
	integ     dynamo.Integrator
	composite *dynamo.Composite
	model     *trajectory.Model
	metrics   []metrics.Metric
	jac       *sensitivity.Jacobians
}

// New resolves the configured system and integrator, applies parameters and
// the initial state.
func New(cfg *config.Config, reg *Registry, logger log.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	sys, err := reg.GetSystem(cfg.System)
	if err != nil {
		return nil, err
	}
	for name, v := range cfg.Params {
		if err := sys.SetParameter(name, v); err != nil {
			return nil, err
		}
	}

	y0 := sys.DefaultState()
	if len(cfg.InitialState) > 0 {
		y0 = dynamo.State(cfg.InitialState).Clone()
	}
	c := dynamo.NewComposite(sys)
	if err := c.SetPrimaryState(y0); err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}
	c.SetTime(cfg.T0)

	integ, err := reg.GetIntegrator(cfg.Integrator, cfg, logger)
	if err != nil {
		return nil, err
	}

	e := &Experiment{
		cfg:       cfg,
		logger:    log.With(logger, "system", cfg.System),
		system:    sys,
		integ:     integ,
		composite: c,
		model:     trajectory.NewFor(c),
		metrics:   reg.DefaultMetrics(sys),
	}
	return e, nil
}

func (e *Experiment) System() Model { return e.system }

func (e *Experiment) Integrator() dynamo.Integrator { return e.integ }

func (e *Experiment) Composite() *dynamo.Composite { return e.composite }

// AddStepHandler attaches an extra handler to the next run.
func (e *Experiment) AddStepHandler(h dynamo.StepHandler) {
	e.integ.AddStepHandler(h)
}

// EnableSensitivity registers the variational equations selected by the
// sensitivity section of the configuration.
func (e *Experiment) EnableSensitivity() error {
	if e.jac != nil {
		return nil
	}
	sc := e.cfg.Sensitivity

	var (
		j   *sensitivity.Jacobians
		err error
	)
	if js, ok := e.system.(dynamo.JacobianSystem); ok && sc.Analytic {
		j, err = sensitivity.NewWithJacobian(js, sc.Params...)
	} else {
		hY := sc.StateSteps
		if len(hY) == 0 {
			y := e.composite.PrimaryState()
			hY = make([]float64, len(y))
			for i, v := range y {
				hY[i] = 1e-7 * math.Max(1, math.Abs(v))
			}
		}
		j, err = sensitivity.New(e.system, hY, sc.Params...)
	}
	if err != nil {
		return err
	}
	j.SetCentralDifferences(sc.Central)
	if err := j.Register(e.composite); err != nil {
		return err
	}
	e.jac = j
	e.model.SetEquations(e.composite.PrimaryMapper(), e.composite.SecondaryMappers())
	return nil
}

// Run integrates to the configured end time and samples the trajectory.
// The composite is left at the end time, so an experiment runs once.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	e.integ.ClearStepHandlers()
	e.integ.AddStepHandler(e.model)
	for _, m := range e.metrics {
		e.integ.AddStepHandler(m)
	}

	level.Info(e.logger).Log("msg", "starting run", "integrator", e.integ.Name(), "t0", e.cfg.T0, "t1", e.cfg.T1)
	start := time.Now()
	if err := e.integ.Integrate(ctx, e.composite, e.cfg.T1); err != nil {
		level.Error(e.logger).Log("msg", "run failed", "err", err)
		return nil, err
	}
	elapsed := time.Since(start)

	times, states, err := e.model.Sample(e.cfg.Samples)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Config:      e.cfg,
		Times:       times,
		States:      states,
		Steps:       e.model.Len(),
		Evaluations: e.integ.Evaluations(),
		Metrics:     metrics.Values(e.metrics...),
		Elapsed:     elapsed,
		Trajectory:  e.model,
	}
	if s, ok := e.integ.(interface{ Stats() dynamo.Stats }); ok {
		res.Rejected = s.Stats().Rejected
	}

	if e.jac != nil {
		if res.StateJacobian, err = e.jac.StateJacobian(e.composite); err != nil {
			return nil, err
		}
		res.ParameterJacobians = make(map[string][]float64)
		for _, p := range e.jac.Parameters() {
			dp, err := e.jac.ParameterJacobian(e.composite, p.Name)
			if err != nil {
				return nil, err
			}
			res.ParameterJacobians[p.Name] = dp
			res.SensitivityParams = append(res.SensitivityParams, p.Name)
		}
	}

	level.Info(e.logger).Log("msg", "run finished", "steps", res.Steps, "rejected", res.Rejected,
		"evaluations", res.Evaluations, "elapsed", elapsed)
	return res, nil
}

// Metadata converts the result into the stored run description.
func (r *Result) Metadata() storage.RunMetadata {
	meta := storage.RunMetadata{
		System:      r.Config.System,
		Integrator:  r.Config.Integrator,
		T0:          r.Config.T0,
		T1:          r.Config.T1,
		Steps:       r.Steps,
		Rejected:    r.Rejected,
		Evaluations: r.Evaluations,
		ElapsedMS:   float64(r.Elapsed.Microseconds()) / 1000,
		Params:      r.Config.Params,
		Metrics:     r.Metrics,
	}
	if r.StateJacobian != nil {
		n, _ := r.StateJacobian.Dims()
		rows := make([][]float64, n)
		for i := range rows {
			rows[i] = mat.Row(nil, i, r.StateJacobian)
		}
		meta.Sensitivity = &storage.Sensitivity{
			StateJacobian:      rows,
			ParameterJacobians: r.ParameterJacobians,
		}
	}
	return meta
}

// Rows returns the sampled states as plain slices.
func (r *Result) Rows() [][]float64 {
	rows := make([][]float64, len(r.States))
	for i, s := range r.States {
		rows[i] = s
	}
	return rows
}
