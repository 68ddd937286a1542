package trajectory

import (
	"fmt"
	"math"

	"github.com/san-kum/odesim/internal/dynamo"
)

// Model is the continuous output of one or more integrations. It is not
// safe for concurrent use: queries update the cached step index.
type Model struct {
	steps       []dynamo.StepInterpolator
	initialTime float64
	finalTime   float64
	forward     bool
	index       int

	primary     *dynamo.EquationsMapper
	secondaries []dynamo.EquationsMapper

	interpolatedTime float64
	y, yDot          dynamo.State
}

func New() *Model {
	return &Model{
		initialTime: math.NaN(),
		finalTime:   math.NaN(),
		forward:     true,
	}
}

// NewFor returns a model that splits interpolated states along the
// equations sets of c.
func NewFor(c *dynamo.Composite) *Model {
	m := New()
	m.SetEquations(c.PrimaryMapper(), c.SecondaryMappers())
	return m
}

// SetEquations declares the layout of the complete state so that primary
// and secondary parts can be queried separately.
func (m *Model) SetEquations(primary dynamo.EquationsMapper, secondaries []dynamo.EquationsMapper) {
	p := primary
	m.primary = &p
	m.secondaries = append([]dynamo.EquationsMapper(nil), secondaries...)
}

func (m *Model) Init(t0 float64, y0 dynamo.State, t float64) {
	m.initialTime = math.NaN()
	m.finalTime = math.NaN()
	m.forward = true
	m.index = 0
	m.steps = m.steps[:0]
	m.y, m.yDot = nil, nil
}

func (m *Model) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	if len(m.steps) == 0 {
		m.initialTime = interp.PreviousTime()
		m.forward = interp.IsForward()
	}
	m.steps = append(m.steps, interp.Copy())
	m.finalTime = interp.CurrentTime()
	if isLast {
		m.index = len(m.steps) - 1
	}
	return nil
}

// Append adds the steps of other at the end of m. Both models must share
// dimension and direction, and other must start where m ends.
func (m *Model) Append(other *Model) error {
	if len(other.steps) == 0 {
		return nil
	}
	if len(m.steps) == 0 {
		m.initialTime = other.initialTime
		m.forward = other.forward
	} else {
		if m.Dimension() != other.Dimension() {
			return fmt.Errorf("%w: %d vs %d components", dynamo.ErrDimensionMismatch, m.Dimension(), other.Dimension())
		}
		if m.forward != other.forward {
			return dynamo.ErrDirectionMismatch
		}

		last := m.steps[len(m.steps)-1]
		current := last.CurrentTime()
		step := current - last.PreviousTime()
		gap := other.InitialTime() - current
		if math.Abs(gap) > 1e-3*math.Abs(step) {
			return fmt.Errorf("%w: %g", dynamo.ErrTimeGap, math.Abs(gap))
		}
	}

	if m.primary == nil && other.primary != nil {
		m.SetEquations(*other.primary, other.secondaries)
	}
	for _, s := range other.steps {
		m.steps = append(m.steps, s.Copy())
	}
	m.index = len(m.steps) - 1
	m.finalTime = m.steps[m.index].CurrentTime()
	return nil
}

func (m *Model) InitialTime() float64 { return m.initialTime }

func (m *Model) FinalTime() float64 { return m.finalTime }

// Len returns the number of stored steps.
func (m *Model) Len() int { return len(m.steps) }

func (m *Model) IsForward() bool { return m.forward }

// Dimension returns the dimension of the complete state, or 0 when empty.
func (m *Model) Dimension() int {
	if len(m.steps) == 0 {
		return 0
	}
	return m.steps[0].Dimension()
}

// Step returns the i-th stored step.
func (m *Model) Step(i int) dynamo.StepInterpolator { return m.steps[i] }

func (m *Model) InterpolatedTime() float64 { return m.interpolatedTime }

// SetInterpolatedTime locates the step covering t and evaluates it. Times
// outside the covered range are extrapolated from the first or last step.
func (m *Model) SetInterpolatedTime(t float64) error {
	if len(m.steps) == 0 {
		return dynamo.ErrEmptyTrajectory
	}
	m.interpolatedTime = t
	m.index = m.locate(t)
	m.y, m.yDot = m.steps[m.index].StateAt(t)
	return nil
}

func (m *Model) locate(t float64) int {
	iMin := 0
	sMin := m.steps[iMin]
	tMin := midpoint(sMin)

	iMax := len(m.steps) - 1
	sMax := m.steps[iMax]
	tMax := midpoint(sMax)

	if m.locatePoint(t, sMin) <= 0 {
		return iMin
	}
	if m.locatePoint(t, sMax) >= 0 {
		return iMax
	}

	index := m.index
	if index < iMin || index > iMax {
		index = iMin
	}

	for iMax-iMin > 5 {
		si := m.steps[index]
		switch loc := m.locatePoint(t, si); {
		case loc < 0:
			iMax = index
			tMax = midpoint(si)
		case loc > 0:
			iMin = index
			tMin = midpoint(si)
		default:
			return index
		}

		iMed := (iMin + iMax) / 2
		tMed := midpoint(m.steps[iMed])

		if math.Abs(tMed-tMin) < 1e-6 || math.Abs(tMax-tMed) < 1e-6 {
			index = iMed
		} else {
			// inverse quadratic: index = P(t) through the three midpoints
			d12 := tMax - tMed
			d23 := tMed - tMin
			d13 := tMax - tMin
			dt1 := t - tMax
			dt2 := t - tMed
			dt3 := t - tMin
			iLagrange := ((dt2*dt3*d23)*float64(iMax) -
				(dt1*dt3*d13)*float64(iMed) +
				(dt1*dt2*d12)*float64(iMin)) /
				(d12 * d23 * d13)
			index = int(math.RoundToEven(iLagrange))
		}

		low := max(iMin+1, (9*iMin+iMax)/10)
		high := min(iMax-1, (iMin+9*iMax)/10)
		if index < low {
			index = low
		} else if index > high {
			index = high
		}
	}

	index = iMin
	for index < iMax && m.locatePoint(t, m.steps[index]) > 0 {
		index++
	}
	return index
}

// locatePoint returns -1, 0 or +1 when t is before, inside or after the
// step in the integration direction.
func (m *Model) locatePoint(t float64, s dynamo.StepInterpolator) int {
	if m.forward {
		if t < s.PreviousTime() {
			return -1
		}
		if t > s.CurrentTime() {
			return 1
		}
		return 0
	}
	if t > s.PreviousTime() {
		return -1
	}
	if t < s.CurrentTime() {
		return 1
	}
	return 0
}

func midpoint(s dynamo.StepInterpolator) float64 {
	return 0.5 * (s.PreviousTime() + s.CurrentTime())
}

// InterpolatedState returns the primary state at the interpolated time, or
// the complete state when no equations layout was declared.
func (m *Model) InterpolatedState() dynamo.State {
	if m.primary == nil {
		return m.y.Clone()
	}
	return m.primary.Extract(m.y)
}

// InterpolatedDerivatives mirrors InterpolatedState for the derivatives.
func (m *Model) InterpolatedDerivatives() dynamo.State {
	if m.primary == nil {
		return m.yDot.Clone()
	}
	return m.primary.Extract(m.yDot)
}

func (m *Model) InterpolatedCompleteState() dynamo.State { return m.y.Clone() }

func (m *Model) InterpolatedSecondaryState(index int) (dynamo.State, error) {
	if index < 0 || index >= len(m.secondaries) {
		return nil, fmt.Errorf("%w: %d", dynamo.ErrUnknownSecondary, index)
	}
	return m.secondaries[index].Extract(m.y), nil
}

func (m *Model) InterpolatedSecondaryDerivatives(index int) (dynamo.State, error) {
	if index < 0 || index >= len(m.secondaries) {
		return nil, fmt.Errorf("%w: %d", dynamo.ErrUnknownSecondary, index)
	}
	return m.secondaries[index].Extract(m.yDot), nil
}

// Sample evaluates the model at n+1 evenly spaced times over its range.
func (m *Model) Sample(n int) ([]float64, []dynamo.State, error) {
	if len(m.steps) == 0 {
		return nil, nil, dynamo.ErrEmptyTrajectory
	}
	if n < 1 {
		n = 1
	}
	times := make([]float64, n+1)
	states := make([]dynamo.State, n+1)
	span := m.finalTime - m.initialTime
	for i := 0; i <= n; i++ {
		t := m.initialTime + span*float64(i)/float64(n)
		if i == n {
			t = m.finalTime
		}
		if err := m.SetInterpolatedTime(t); err != nil {
			return nil, nil, err
		}
		times[i] = t
		states[i] = m.InterpolatedState()
	}
	return times, states, nil
}
