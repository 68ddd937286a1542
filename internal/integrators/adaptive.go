package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/odesim/internal/dynamo"
)

// stepControl holds step bounds, tolerances and the controller constants
// shared by the adaptive integrators.
type stepControl struct {
	minStep     float64
	maxStep     float64
	absTol      float64
	relTol      float64
	vecAbsTol   []float64
	vecRelTol   []float64
	initialStep float64

	safety       float64
	minReduction float64
	maxGrowth    float64
	exp          float64
}

func newStepControl(minStep, maxStep, absTol, relTol float64, order int, s settings, defaultGrowth float64) (stepControl, error) {
	minStep, maxStep = math.Abs(minStep), math.Abs(maxStep)
	if maxStep == 0 || math.IsNaN(maxStep) || minStep > maxStep {
		return stepControl{}, fmt.Errorf("%w: bounds [%g, %g]", dynamo.ErrInvalidStep, minStep, maxStep)
	}
	if len(s.vecAbsTol) != len(s.vecRelTol) {
		return stepControl{}, fmt.Errorf("%w: %d absolute and %d relative tolerances", dynamo.ErrDimensionMismatch, len(s.vecAbsTol), len(s.vecRelTol))
	}
	sc := stepControl{
		minStep:      minStep,
		maxStep:      maxStep,
		absTol:       absTol,
		relTol:       relTol,
		vecAbsTol:    s.vecAbsTol,
		vecRelTol:    s.vecRelTol,
		initialStep:  s.initialStep,
		safety:       0.9,
		minReduction: 0.2,
		maxGrowth:    defaultGrowth,
		exp:          -1.0 / float64(order),
	}
	if !math.IsNaN(s.safety) {
		sc.safety = s.safety
	}
	if !math.IsNaN(s.minReduction) {
		sc.minReduction = s.minReduction
	}
	if !math.IsNaN(s.maxGrowth) {
		sc.maxGrowth = s.maxGrowth
	}
	if sc.initialStep < sc.minStep || sc.initialStep > sc.maxStep {
		sc.initialStep = 0
	}
	return sc, nil
}

func (sc *stepControl) checkTolerances(mainDim int) error {
	if sc.vecAbsTol != nil && len(sc.vecAbsTol) != mainDim {
		return fmt.Errorf("%w: %d tolerances for %d primary components", dynamo.ErrDimensionMismatch, len(sc.vecAbsTol), mainDim)
	}
	return nil
}

func (sc *stepControl) tolerance(i int, yScale float64) float64 {
	if sc.vecAbsTol != nil {
		return sc.vecAbsTol[i] + sc.vecRelTol[i]*yScale
	}
	return sc.absTol + sc.relTol*yScale
}

// StepFactor returns the step size ratio for a normalized error estimate.
func (sc *stepControl) StepFactor(err float64) float64 {
	return math.Min(sc.maxGrowth, math.Max(sc.minReduction, sc.safety*math.Pow(err, sc.exp)))
}

func (sc *stepControl) Safety() float64       { return sc.safety }
func (sc *stepControl) MinReduction() float64 { return sc.minReduction }
func (sc *stepControl) MaxGrowth() float64    { return sc.maxGrowth }
func (sc *stepControl) MinStep() float64      { return sc.minStep }
func (sc *stepControl) MaxStep() float64      { return sc.maxStep }

// filterStep clamps h to the step bounds. A step below the minimum is only
// accepted when acceptSmall is set, typically for the final step.
func (sc *stepControl) filterStep(h float64, forward, acceptSmall bool) (float64, error) {
	filtered := h
	if math.Abs(h) < sc.minStep {
		if !acceptSmall {
			return 0, fmt.Errorf("%w: %g < %g", dynamo.ErrStepTooSmall, math.Abs(h), sc.minStep)
		}
		filtered = sc.minStep
		if !forward {
			filtered = -sc.minStep
		}
	}
	if filtered > sc.maxStep {
		filtered = sc.maxStep
	} else if filtered < -sc.maxStep {
		filtered = -sc.maxStep
	}
	return filtered, nil
}

// initializeStep estimates a first step from the local derivative
// behaviour, following the heuristic of Hairer, Norsett and Wanner.
func (sc *stepControl) initializeStep(forward bool, order int, mainDim int, t0 float64, y0, yDot0 dynamo.State, derive deriveFunc) (float64, error) {
	if sc.initialStep > 0 {
		if forward {
			return sc.initialStep, nil
		}
		return -sc.initialStep, nil
	}

	scale := make([]float64, mainDim)
	yOnScale2, yDotOnScale2 := 0.0, 0.0
	for j := 0; j < mainDim; j++ {
		scale[j] = sc.tolerance(j, math.Abs(y0[j]))
		ratio := y0[j] / scale[j]
		yOnScale2 += ratio * ratio
		ratio = yDot0[j] / scale[j]
		yDotOnScale2 += ratio * ratio
	}

	h := 1e-6
	if yOnScale2 >= 1e-10 && yDotOnScale2 >= 1e-10 {
		h = 0.01 * math.Sqrt(yOnScale2/yDotOnScale2)
	}
	if !forward {
		h = -h
	}

	y1 := y0.Clone()
	for j := range y1 {
		y1[j] += h * yDot0[j]
	}
	yDot1, err := derive(t0+h, y1)
	if err != nil {
		return 0, err
	}

	yDDotOnScale := 0.0
	for j := 0; j < mainDim; j++ {
		ratio := (yDot1[j] - yDot0[j]) / scale[j]
		yDDotOnScale += ratio * ratio
	}
	yDDotOnScale = math.Sqrt(yDDotOnScale) / math.Abs(h)

	maxInv2 := math.Max(math.Sqrt(yDotOnScale2), yDDotOnScale)
	var h1 float64
	if maxInv2 < 1e-15 {
		h1 = math.Max(1e-6, 0.001*math.Abs(h))
	} else {
		h1 = math.Pow(0.01/maxInv2, 1.0/float64(order))
	}
	h = math.Min(100*math.Abs(h), h1)
	h = math.Max(h, 1e-12*math.Abs(t0))
	h = math.Max(sc.minStep, math.Min(sc.maxStep, h))
	if !forward {
		h = -h
	}
	return h, nil
}
