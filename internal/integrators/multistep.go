package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/dynamo"
)

// Multistep is the shared engine of the Adams integrators. The history is
// carried as a Nordsieck vector and bootstrapped by an embedded Runge-Kutta
// starter.
type Multistep struct {
	base
	stepControl

	nSteps      int
	order       int
	pece        bool
	transformer *NordsieckTransformer
	starter     *Embedded

	scaled    dynamo.State
	nordsieck *mat.Dense
	startDot  dynamo.State
}

func newMultistep(name string, nSteps, order int, pece bool, minStep, maxStep, absTol, relTol float64, opts []Option) (*Multistep, error) {
	if nSteps < 2 {
		return nil, fmt.Errorf("%w: got %d", dynamo.ErrTooFewSteps, nSteps)
	}
	s := applyOptions(opts)
	sc, err := newStepControl(minStep, maxStep, absTol, relTol, order, s, math.Pow(2, 1.0/float64(order)))
	if err != nil {
		return nil, err
	}
	transformer, err := NewNordsieckTransformer(nSteps)
	if err != nil {
		return nil, err
	}
	starter, err := NewDormandPrince54(minStep, maxStep, absTol, relTol,
		WithLogger(s.logger), WithTolerances(s.vecAbsTol, s.vecRelTol))
	if err != nil {
		return nil, err
	}

	m := &Multistep{
		base:        newBase(name, s),
		stepControl: sc,
		nSteps:      nSteps,
		order:       order,
		pece:        pece,
		transformer: transformer,
		starter:     starter,
	}
	starter.counter = m.counter
	return m, nil
}

func (m *Multistep) NSteps() int { return m.nSteps }

func (m *Multistep) Order() int { return m.order }

// nordsieckInitializer collects the first points of the starter run and
// builds the initial Nordsieck vector from them, then asks the starter to
// stop.
type nordsieckInitializer struct {
	transformer *NordsieckTransformer
	t           []float64
	y           []dynamo.State
	yDot        []dynamo.State
	count       int

	h         float64
	scaled    dynamo.State
	nordsieck *mat.Dense
	done      bool
}

func newNordsieckInitializer(transformer *NordsieckTransformer, points int) *nordsieckInitializer {
	return &nordsieckInitializer{
		transformer: transformer,
		t:           make([]float64, points),
		y:           make([]dynamo.State, points),
		yDot:        make([]dynamo.State, points),
	}
}

func (ni *nordsieckInitializer) Init(t0 float64, y0 dynamo.State, t float64) {
	ni.count = 0
	ni.done = false
}

func (ni *nordsieckInitializer) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	if ni.done {
		return nil
	}
	if ni.count == 0 {
		prev := interp.PreviousTime()
		ni.t[0] = prev
		ni.y[0], ni.yDot[0] = interp.StateAt(prev)
	}
	ni.count++
	curr := interp.CurrentTime()
	ni.t[ni.count] = curr
	ni.y[ni.count], ni.yDot[ni.count] = interp.StateAt(curr)

	if ni.count == len(ni.t)-1 {
		last := len(ni.t) - 1
		ni.h = (ni.t[last] - ni.t[0]) / float64(last)
		ni.scaled = ni.yDot[0].Scale(ni.h)
		nordsieck, err := ni.transformer.InitializeHighOrderDerivatives(ni.h, ni.t, ni.y, ni.yDot)
		if err != nil {
			return err
		}
		ni.nordsieck = nordsieck
		ni.done = true
	}
	return nil
}

func (ni *nordsieckInitializer) StopRequested() bool { return ni.done }

// start runs the starter from (t0, y0) until enough points are known to
// build the Nordsieck vector at t0.
func (m *Multistep) start(ctx context.Context, c *dynamo.Composite, t0 float64, y0 dynamo.State, t float64) error {
	points := (m.nSteps + 3) / 2
	init := newNordsieckInitializer(m.transformer, points)

	m.starter.ClearStepHandlers()
	m.starter.AddStepHandler(init)
	span := math.Abs(t - t0)
	m.starter.maxStep = math.Max(m.minStep, math.Min(m.maxStep, span/float64(points)))
	m.starter.initialStep = 0

	m.starter.initHandlers(t0, y0, t)
	if _, _, err := m.starter.run(ctx, c, t0, y0, t); err != nil {
		return err
	}
	m.starter.ClearStepHandlers()

	if !init.done {
		return fmt.Errorf("%w: %d of %d points", dynamo.ErrStarterStoppedEarly, init.count+1, points)
	}

	m.stepStart = init.t[0]
	m.stepSize = init.h
	m.scaled = init.scaled
	m.nordsieck = init.nordsieck
	m.startDot = init.yDot[0]
	level.Debug(m.logger).Log("msg", "multistep history initialized", "points", points,
		"h", m.stepSize, "evaluations", m.counter.count)
	return nil
}

func (m *Multistep) Integrate(ctx context.Context, c *dynamo.Composite, t float64) error {
	t0 := c.Time()
	y0 := c.CompleteState()
	if err := m.sanityChecks(c, y0, t); err != nil {
		return err
	}
	mainDim := c.PrimaryMapper().Dim
	if err := m.checkTolerances(mainDim); err != nil {
		return err
	}
	forward := isForward(t0, t)
	m.initIntegration(t0, y0, t)

	if err := m.start(ctx, c, t0, y0, t); err != nil {
		return m.wrapErr(err)
	}

	derive := func(tt float64, yy dynamo.State) (dynamo.State, error) {
		return m.derive(c, tt, yy)
	}

	y, yDot := y0.Clone(), m.startDot
	scaled, nordsieck := m.scaled, m.nordsieck

	hNew := m.stepSize
	if reaches(m.stepStart+hNew, t, forward) {
		hNew = t - m.stepStart
	}
	rescaleNordsieck(scaled, nordsieck, hNew/m.stepSize)

	snap := 1e3 * ulp(math.Max(math.Abs(t0), math.Abs(t)))

	for !m.isLastStep {
		if err := checkContext(ctx); err != nil {
			return err
		}

		var (
			predictedY         dynamo.State
			predictedScaled    dynamo.State
			predictedNordsieck *mat.Dense
			yDotEnd            dynamo.State
			stepEnd            float64
			last               bool
			errRatio           = 10.0
			err                error
		)
		for errRatio >= 1.0 {
			stepEnd = m.stepStart + hNew
			last = reaches(stepEnd, t, forward) || math.Abs(stepEnd-t) <= snap
			if last {
				stepEnd = t
			}

			predictedY, _ = nordsieckEvaluate(m.stepStart, y, hNew, scaled, nordsieck, stepEnd)
			if yDotEnd, err = derive(stepEnd, predictedY); err != nil {
				return m.wrapErr(err)
			}

			predictedScaled = yDotEnd.Scale(hNew)
			predictedNordsieck = m.transformer.UpdatePhase1(nordsieck)
			m.transformer.UpdatePhase2(scaled, predictedScaled, predictedNordsieck)

			if m.pece {
				errRatio = m.correct(y, predictedScaled, predictedNordsieck, predictedY, mainDim)
			} else {
				errRatio = m.estimateError(y, predictedY, predictedScaled, predictedNordsieck, mainDim)
			}
			if math.IsNaN(errRatio) {
				errRatio = 10
			}

			if errRatio >= 1.0 {
				m.stats.Rejected++
				level.Debug(m.logger).Log("msg", "step rejected", "t", m.stepStart, "h", hNew, "error", errRatio)
				filtered, err := m.filterStep(hNew*m.StepFactor(errRatio), forward, false)
				if err != nil {
					return m.wrapErr(err)
				}
				rescaleNordsieck(scaled, nordsieck, filtered/hNew)
				hNew = filtered
			}
		}
		m.stepSize = hNew

		if m.pece {
			if yDotEnd, err = derive(stepEnd, predictedY); err != nil {
				return m.wrapErr(err)
			}
			correctedScaled := yDotEnd.Scale(m.stepSize)
			m.transformer.UpdatePhase2(predictedScaled, correctedScaled, predictedNordsieck)
			predictedScaled = correctedScaled
		}
		if !predictedY.IsValid() {
			return m.wrapErr(dynamo.ErrInvalidState)
		}

		interp := NewNordsieckInterpolator(m.stepStart, y, yDot, stepEnd, predictedY, yDotEnd,
			m.stepSize, predictedScaled, predictedNordsieck)
		stop, err := m.acceptStep(interp, last)
		if err != nil {
			return err
		}

		m.stepStart = stepEnd
		y, yDot = predictedY, yDotEnd
		scaled, nordsieck = predictedScaled, predictedNordsieck
		m.isLastStep = last || stop

		if !m.isLastStep {
			scaledH := m.stepSize * m.StepFactor(errRatio)
			nextIsLast := reaches(m.stepStart+scaledH, t, forward)
			if hNew, err = m.filterStep(scaledH, forward, nextIsLast); err != nil {
				return m.wrapErr(err)
			}
			if reaches(m.stepStart+hNew, t, forward) {
				hNew = t - m.stepStart
			}
			rescaleNordsieck(scaled, nordsieck, hNew/m.stepSize)
		}
	}

	return m.finish(c, m.stepStart, y)
}

// estimateError compares the predicted state with the one reconstructed
// backwards from the predicted Nordsieck vector.
func (m *Multistep) estimateError(previous, predicted, predictedScaled dynamo.State, predictedNordsieck *mat.Dense, mainDim int) float64 {
	rows, _ := predictedNordsieck.Dims()
	sum := 0.0
	for i := 0; i < mainDim; i++ {
		tol := m.tolerance(i, math.Abs(predicted[i]))

		variation := 0.0
		sign := 1.0
		if rows%2 == 0 {
			sign = -1.0
		}
		for k := rows - 1; k >= 0; k-- {
			variation += sign * predictedNordsieck.At(k, i)
			sign = -sign
		}
		variation -= predictedScaled[i]

		ratio := (predicted[i] - previous[i] + variation) / tol
		sum += ratio * ratio
	}
	return math.Sqrt(sum / float64(mainDim))
}

// correct applies the Adams-Moulton corrector in place on state and returns
// the normalized difference between corrected and predicted values.
func (m *Multistep) correct(previous, scaled dynamo.State, nordsieck *mat.Dense, state dynamo.State, mainDim int) float64 {
	before := state.Clone()
	after := make(dynamo.State, len(state))
	rows, _ := nordsieck.Dims()
	for k := 0; k < rows; k++ {
		row := nordsieck.RawRowView(k)
		for j, v := range row {
			if k%2 == 0 {
				after[j] -= v
			} else {
				after[j] += v
			}
		}
	}

	sum := 0.0
	for i := range after {
		after[i] += previous[i] + scaled[i]
		if i < mainDim {
			yScale := math.Max(math.Abs(previous[i]), math.Abs(after[i]))
			ratio := (after[i] - before[i]) / m.tolerance(i, yScale)
			sum += ratio * ratio
		}
	}
	copy(state, after)
	return math.Sqrt(sum / float64(mainDim))
}
