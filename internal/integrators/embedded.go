package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/go-kit/log/level"

	"github.com/san-kum/odesim/internal/dynamo"
)

// Embedded is an adaptive Runge-Kutta integrator driven by an embedded
// tableau. The error is measured over the primary components only.
type Embedded struct {
	base
	stepControl
	tab Tableau

	k   []dynamo.State
	tmp dynamo.State
}

func NewEmbedded(tab Tableau, minStep, maxStep, absTol, relTol float64, opts ...Option) (*Embedded, error) {
	if err := tab.Validate(); err != nil {
		return nil, err
	}
	if !tab.Embedded() {
		return nil, fmt.Errorf("%w: %s has no error estimator", dynamo.ErrInvalidTableau, tab.Name)
	}
	s := applyOptions(opts)
	sc, err := newStepControl(minStep, maxStep, absTol, relTol, tab.Order, s, 10.0)
	if err != nil {
		return nil, err
	}
	return &Embedded{base: newBase(tab.Name, s), stepControl: sc, tab: tab}, nil
}

// NewDormandPrince54 returns an adaptive Dormand-Prince 5(4) integrator.
func NewDormandPrince54(minStep, maxStep, absTol, relTol float64, opts ...Option) (*Embedded, error) {
	return NewEmbedded(DormandPrince54(), minStep, maxStep, absTol, relTol, opts...)
}

func (e *Embedded) ensureScratch(n int) {
	if len(e.k) != e.tab.Stages() {
		e.k = make([]dynamo.State, e.tab.Stages())
	}
	if len(e.tmp) != n {
		e.tmp = make(dynamo.State, n)
	}
}

func (e *Embedded) Integrate(ctx context.Context, c *dynamo.Composite, t float64) error {
	t0 := c.Time()
	y0 := c.CompleteState()
	if err := e.sanityChecks(c, y0, t); err != nil {
		return err
	}
	if err := e.checkTolerances(c.PrimaryMapper().Dim); err != nil {
		return err
	}
	e.initIntegration(t0, y0, t)

	tEnd, y, err := e.run(ctx, c, t0, y0, t)
	if err != nil {
		return err
	}
	return e.finish(c, tEnd, y)
}

// run integrates from (t0, y0) towards t and returns the time and state the
// integration ended at. Handlers must already be initialized.
func (e *Embedded) run(ctx context.Context, c *dynamo.Composite, t0 float64, y0 dynamo.State, t float64) (float64, dynamo.State, error) {
	forward := isForward(t0, t)
	mainDim := c.PrimaryMapper().Dim
	e.ensureScratch(len(y0))

	derive := func(tt float64, yy dynamo.State) (dynamo.State, error) {
		return e.derive(c, tt, yy)
	}

	y := y0.Clone()
	yDot, err := derive(t0, y)
	if err != nil {
		return 0, nil, e.wrapErr(err)
	}

	e.stepStart = t0
	hNew := 0.0
	firstTime := true

	for !e.isLastStep {
		if err := checkContext(ctx); err != nil {
			return 0, nil, err
		}

		var (
			yEnd     dynamo.State
			errRatio = 10.0
			last     bool
		)
		for errRatio >= 1.0 {
			if firstTime {
				hNew, err = e.initializeStep(forward, e.tab.Order, mainDim, e.stepStart, y, yDot, derive)
				if err != nil {
					return 0, nil, e.wrapErr(err)
				}
				firstTime = false
			}

			e.stepSize = hNew
			last = reaches(e.stepStart+e.stepSize, t, forward)
			if last {
				e.stepSize = t - e.stepStart
			}

			yEnd, err = rkStages(e.tab, derive, e.stepStart, y, yDot, e.stepSize, e.k, e.tmp)
			if err != nil {
				return 0, nil, e.wrapErr(err)
			}

			errRatio = e.estimateError(y, yEnd, e.stepSize, mainDim)
			if errRatio >= 1.0 || math.IsNaN(errRatio) {
				if math.IsNaN(errRatio) {
					errRatio = 10
				}
				e.stats.Rejected++
				factor := e.StepFactor(errRatio)
				level.Debug(e.logger).Log("msg", "step rejected", "t", e.stepStart, "h", e.stepSize, "error", errRatio)
				if hNew, err = e.filterStep(e.stepSize*factor, forward, false); err != nil {
					return 0, nil, e.wrapErr(err)
				}
			}
		}

		tEnd := e.stepStart + e.stepSize
		if last {
			tEnd = t
			e.isLastStep = true
		}

		var yDotEnd dynamo.State
		if e.tab.FSAL {
			yDotEnd = e.k[len(e.k)-1]
		} else if yDotEnd, err = derive(tEnd, yEnd); err != nil {
			return 0, nil, e.wrapErr(err)
		}

		interp := NewHermiteInterpolator(e.stepStart, y, yDot, tEnd, yEnd, yDotEnd)
		stop, err := e.acceptStep(interp, e.isLastStep)
		if err != nil {
			return 0, nil, err
		}
		e.stepStart = tEnd
		y, yDot = yEnd, yDotEnd

		if stop {
			e.isLastStep = true
		}
		if !e.isLastStep {
			factor := e.StepFactor(errRatio)
			scaledH := e.stepSize * factor
			nextIsLast := reaches(e.stepStart+scaledH, t, forward)
			if hNew, err = e.filterStep(scaledH, forward, nextIsLast); err != nil {
				return 0, nil, e.wrapErr(err)
			}
			if reaches(e.stepStart+hNew, t, forward) {
				hNew = t - e.stepStart
			}
		}
	}

	return e.stepStart, y, nil
}

// estimateError returns the RMS of the embedded error over the primary
// components, normalized by the tolerances.
func (e *Embedded) estimateError(y0, y1 dynamo.State, h float64, mainDim int) float64 {
	sum := 0.0
	for i := 0; i < mainDim; i++ {
		errI := 0.0
		for j, coef := range e.tab.E {
			if coef != 0 {
				errI += coef * e.k[j][i]
			}
		}
		yScale := math.Max(math.Abs(y0[i]), math.Abs(y1[i]))
		ratio := h * errI / e.tolerance(i, yScale)
		sum += ratio * ratio
	}
	return math.Sqrt(sum / float64(mainDim))
}
