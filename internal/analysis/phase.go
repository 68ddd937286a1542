package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/trajectory"
)

// PhasePortrait2D holds a 2D projection of a trajectory.
type PhasePortrait2D struct {
	XIndex, YIndex int
	Points         []Point
}

func checkIndices(dim int, indices ...int) error {
	for _, i := range indices {
		if i < 0 || i >= dim {
			return fmt.Errorf("%w: component %d of %d", dynamo.ErrDimensionMismatch, i, dim)
		}
	}
	return nil
}

// GeneratePhasePortrait samples the dense output of model at samples+1
// evenly spaced times and projects the primary state on two components.
func GeneratePhasePortrait(model *trajectory.Model, xIdx, yIdx, samples int) (*PhasePortrait2D, error) {
	_, states, err := model.Sample(samples)
	if err != nil {
		return nil, err
	}
	if err := checkIndices(len(states[0]), xIdx, yIdx); err != nil {
		return nil, err
	}
	portrait := &PhasePortrait2D{
		XIndex: xIdx,
		YIndex: yIdx,
		Points: make([]Point, len(states)),
	}
	for i, y := range states {
		portrait.Points[i] = Point{X: y[xIdx], Y: y[yIdx]}
	}
	return portrait, nil
}

// PhasePortraitToASCII converts phase portrait to ASCII art
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil {
		return ""
	}
	return plotPoints(portrait.Points, width, height, '•', true)
}

// PoincareSection records the states at which a trajectory crosses the
// hyperplane y[CrossIndex] = Threshold in the increasing direction.
type PoincareSection struct {
	CrossIndex int
	Threshold  float64
	Times      []float64
	Points     []Point
}

// GeneratePoincareSection scans every step of model for upward crossings
// and locates each one on the step's dense output by bisection.
func GeneratePoincareSection(model *trajectory.Model, crossIdx int, threshold float64, recordX, recordY int) (*PoincareSection, error) {
	if model.Len() == 0 {
		return nil, dynamo.ErrEmptyTrajectory
	}
	if err := checkIndices(model.Dimension(), crossIdx, recordX, recordY); err != nil {
		return nil, err
	}

	section := &PoincareSection{CrossIndex: crossIdx, Threshold: threshold}
	for i := 0; i < model.Len(); i++ {
		step := model.Step(i)
		t0, t1 := step.PreviousTime(), step.CurrentTime()
		y0, _ := step.StateAt(t0)
		y1, _ := step.StateAt(t1)
		g0, g1 := y0[crossIdx]-threshold, y1[crossIdx]-threshold
		if !(g0 < 0 && g1 >= 0) {
			continue
		}

		tc := bisectCrossing(step, crossIdx, threshold, t0, t1)
		y, _ := step.StateAt(tc)
		section.Times = append(section.Times, tc)
		section.Points = append(section.Points, Point{X: y[recordX], Y: y[recordY]})
	}
	return section, nil
}

// bisectCrossing narrows [a, b], on which y[idx]-threshold changes sign from
// negative to non-negative, down to a few ulps.
func bisectCrossing(step dynamo.StepInterpolator, idx int, threshold, a, b float64) float64 {
	tol := 1e-12 * math.Max(1, math.Abs(b))
	for iter := 0; iter < 100 && math.Abs(b-a) > tol; iter++ {
		mid := 0.5 * (a + b)
		y, _ := step.StateAt(mid)
		if y[idx]-threshold < 0 {
			a = mid
		} else {
			b = mid
		}
	}
	return 0.5 * (a + b)
}

// PoincareSectionToASCII converts section data to ASCII plot
func PoincareSectionToASCII(section *PoincareSection, width, height int) string {
	if section == nil || len(section.Points) == 0 {
		return "No crossings detected"
	}
	return plotPoints(section.Points, width, height, '●', false)
}
