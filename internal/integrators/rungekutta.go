package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/odesim/internal/dynamo"
)

type deriveFunc func(t float64, y dynamo.State) (dynamo.State, error)

// rkStages runs the stage loop of tab over one step of size h. k must have
// one slot per stage; k[0] receives yDot0. tmp is a scratch vector.
func rkStages(tab Tableau, derive deriveFunc, t0 float64, y0, yDot0 dynamo.State, h float64, k []dynamo.State, tmp dynamo.State) (dynamo.State, error) {
	k[0] = yDot0
	for s := 1; s < len(tab.C); s++ {
		copy(tmp, y0)
		for j, a := range tab.A[s] {
			if a != 0 {
				floats.AddScaled(tmp, h*a, k[j])
			}
		}
		d, err := derive(t0+tab.C[s]*h, tmp)
		if err != nil {
			return nil, err
		}
		k[s] = d
	}

	yEnd := y0.Clone()
	for j, b := range tab.B {
		if b != 0 {
			floats.AddScaled(yEnd, h*b, k[j])
		}
	}
	return yEnd, nil
}

// RungeKutta is a fixed step explicit Runge-Kutta integrator driven by a
// Butcher tableau. The last step is shortened to land on the target time.
type RungeKutta struct {
	base
	tab  Tableau
	step float64

	k   []dynamo.State
	tmp dynamo.State
}

func NewRungeKutta(name string, tab Tableau, step float64, opts ...Option) (*RungeKutta, error) {
	if err := tab.Validate(); err != nil {
		return nil, err
	}
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidStep, step)
	}
	if name == "" {
		name = tab.Name
	}
	return &RungeKutta{base: newBase(name, applyOptions(opts)), tab: tab, step: step}, nil
}

func NewEuler(step float64, opts ...Option) (*RungeKutta, error) {
	return NewRungeKutta("euler", Euler(), step, opts...)
}

func NewRK4(step float64, opts ...Option) (*RungeKutta, error) {
	return NewRungeKutta("rk4", ClassicalRK4(), step, opts...)
}

func (r *RungeKutta) Tableau() Tableau { return r.tab }

func (r *RungeKutta) Step() float64 { return r.step }

func (r *RungeKutta) ensureScratch(n int) {
	if len(r.k) != r.tab.Stages() {
		r.k = make([]dynamo.State, r.tab.Stages())
	}
	if len(r.tmp) != n {
		r.tmp = make(dynamo.State, n)
	}
}

func (r *RungeKutta) Integrate(ctx context.Context, c *dynamo.Composite, t float64) error {
	t0 := c.Time()
	y := c.CompleteState()
	if err := r.sanityChecks(c, y, t); err != nil {
		return err
	}
	forward := isForward(t0, t)
	r.ensureScratch(len(y))
	r.initIntegration(t0, y, t)

	derive := func(tt float64, yy dynamo.State) (dynamo.State, error) {
		return r.derive(c, tt, yy)
	}

	yDot, err := derive(t0, y)
	if err != nil {
		return r.wrapErr(err)
	}

	r.stepStart = t0
	for !r.isLastStep {
		if err := checkContext(ctx); err != nil {
			return err
		}

		h := r.step
		if !forward {
			h = -h
		}
		tEnd := r.stepStart + h
		if reaches(tEnd+1e-9*h, t, forward) {
			h = t - r.stepStart
			tEnd = t
			r.isLastStep = true
		}
		r.stepSize = h

		yEnd, err := rkStages(r.tab, derive, r.stepStart, y, yDot, h, r.k, r.tmp)
		if err != nil {
			return r.wrapErr(err)
		}

		var yDotEnd dynamo.State
		if r.tab.FSAL {
			yDotEnd = r.k[len(r.k)-1]
		} else if yDotEnd, err = derive(tEnd, yEnd); err != nil {
			return r.wrapErr(err)
		}
		if !yEnd.IsValid() {
			return r.wrapErr(dynamo.ErrInvalidState)
		}

		interp := NewHermiteInterpolator(r.stepStart, y, yDot, tEnd, yEnd, yDotEnd)
		stop, err := r.acceptStep(interp, r.isLastStep)
		if err != nil {
			return err
		}

		r.stepStart = tEnd
		y, yDot = yEnd, yDotEnd
		if stop && !r.isLastStep {
			level.Debug(r.logger).Log("msg", "stop requested by step handler", "t", tEnd)
			r.isLastStep = true
		}
	}

	return r.finish(c, r.stepStart, y)
}

// SingleStep advances y0 from t0 to t in one step of tab. It uses no
// integrator state and is safe for concurrent use when sys is.
func SingleStep(tab Tableau, sys dynamo.System, t0 float64, y0 dynamo.State, t float64) (dynamo.State, error) {
	if err := tab.Validate(); err != nil {
		return nil, err
	}
	n := len(y0)
	derive := func(tt float64, yy dynamo.State) (dynamo.State, error) {
		d, err := sys.Derive(tt, yy)
		if err != nil {
			return nil, err
		}
		if len(d) != n {
			return nil, fmt.Errorf("%w: derivative has %d components, want %d", dynamo.ErrDimensionMismatch, len(d), n)
		}
		return d, nil
	}

	yDot0, err := derive(t0, y0)
	if err != nil {
		return nil, err
	}
	k := make([]dynamo.State, tab.Stages())
	return rkStages(tab, derive, t0, y0, yDot0, t-t0, k, make(dynamo.State, n))
}

// StepBatch applies SingleStep to every state in ys concurrently.
func StepBatch(ctx context.Context, tab Tableau, sys dynamo.System, t0 float64, ys []dynamo.State, t float64) ([]dynamo.State, error) {
	out := make([]dynamo.State, len(ys))
	err := dynamo.ParallelFor(ctx, len(ys), 0, func(ctx context.Context, i int) error {
		y, err := SingleStep(tab, sys, t0, ys[i], t)
		if err != nil {
			return fmt.Errorf("state %d: %w", i, err)
		}
		out[i] = y
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
