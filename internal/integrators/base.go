package integrators

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/san-kum/odesim/internal/dynamo"
)

type evalCounter struct {
	count int
	max   int
}

func (e *evalCounter) increment() error {
	e.count++
	if e.max > 0 && e.count > e.max {
		return fmt.Errorf("%w: limit is %d", dynamo.ErrMaxEvaluations, e.max)
	}
	return nil
}

// base carries what every integrator shares: handlers, the evaluation
// budget, statistics and logging.
type base struct {
	name     string
	handlers []dynamo.StepHandler
	counter  *evalCounter
	logger   log.Logger
	stats    dynamo.Stats

	stepStart  float64
	stepSize   float64
	isLastStep bool
}

func newBase(name string, s settings) base {
	return base{
		name:    name,
		counter: &evalCounter{max: s.maxEvaluations},
		logger:  log.With(s.logger, "integrator", name),
	}
}

func (b *base) Name() string { return b.name }

func (b *base) AddStepHandler(h dynamo.StepHandler) {
	b.handlers = append(b.handlers, h)
}

func (b *base) ClearStepHandlers() {
	b.handlers = nil
}

// Evaluations returns the number of derivative evaluations of the last
// Integrate call.
func (b *base) Evaluations() int { return b.counter.count }

func (b *base) MaxEvaluations() int { return b.counter.max }

func (b *base) SetMaxEvaluations(n int) { b.counter.max = n }

// Stats returns statistics of the last Integrate call.
func (b *base) Stats() dynamo.Stats {
	s := b.stats
	s.Evaluations = b.counter.count
	return s
}

func (b *base) derive(c *dynamo.Composite, t float64, y dynamo.State) (dynamo.State, error) {
	if err := b.counter.increment(); err != nil {
		return nil, err
	}
	yDot, err := c.Derive(t, y)
	if err != nil {
		return nil, err
	}
	return yDot, nil
}

func (b *base) sanityChecks(c *dynamo.Composite, y0 dynamo.State, t float64) error {
	t0 := c.Time()
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: target time %v", dynamo.ErrIntervalTooSmall, t)
	}
	threshold := 1e3 * ulp(math.Max(math.Abs(t0), math.Abs(t)))
	if math.Abs(t-t0) <= threshold {
		return fmt.Errorf("%w: %g to %g", dynamo.ErrIntervalTooSmall, t0, t)
	}
	if !y0.IsValid() {
		return dynamo.ErrInvalidState
	}
	return nil
}

func ulp(x float64) float64 {
	return math.Nextafter(x, math.Inf(1)) - x
}

func (b *base) initIntegration(t0 float64, y0 dynamo.State, t float64) {
	b.counter.count = 0
	b.initHandlers(t0, y0, t)
	level.Debug(b.logger).Log("msg", "integration started", "t0", t0, "t", t)
}

// initHandlers resets the per-run state without touching the evaluation
// counter, which a starter shares with its owner.
func (b *base) initHandlers(t0 float64, y0 dynamo.State, t float64) {
	b.stats = dynamo.Stats{}
	b.isLastStep = false
	for _, h := range b.handlers {
		h.Init(t0, y0.Clone(), t)
	}
}

// acceptStep reports a step to every handler. stop is true when a handler
// asked the integration to end after this step.
func (b *base) acceptStep(interp dynamo.StepInterpolator, isLast bool) (stop bool, err error) {
	b.stats.Steps++
	b.stats.LastStep = interp.CurrentTime() - interp.PreviousTime()
	for _, h := range b.handlers {
		if err := h.HandleStep(interp, isLast); err != nil {
			return false, &dynamo.IntegrationError{Step: b.stats.Steps, Time: interp.CurrentTime(), Wrapped: err}
		}
		if s, ok := h.(dynamo.Stopper); ok && s.StopRequested() {
			stop = true
		}
	}
	return stop, nil
}

func (b *base) finish(c *dynamo.Composite, t float64, y dynamo.State) error {
	c.SetTime(t)
	if err := c.SetCompleteState(y); err != nil {
		return err
	}
	level.Debug(b.logger).Log("msg", "integration finished", "t", t, "steps", b.stats.Steps,
		"rejected", b.stats.Rejected, "evaluations", b.counter.count)
	return nil
}

// wrapErr attaches the current step context to err unless it already has it.
func (b *base) wrapErr(err error) error {
	var ie *dynamo.IntegrationError
	if errors.As(err, &ie) {
		return err
	}
	return &dynamo.IntegrationError{Step: b.stats.Steps, Time: b.stepStart, Wrapped: err}
}

func isForward(t0, t float64) bool { return t > t0 }

// reaches reports whether time x is at or beyond target in the given direction.
func reaches(x, target float64, forward bool) bool {
	if forward {
		return x >= target
	}
	return x <= target
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", dynamo.ErrContextCanceled, ctx.Err())
	default:
		return nil
	}
}
