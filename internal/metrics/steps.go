package metrics

import (
	"math"

	"github.com/san-kum/odesim/internal/dynamo"
)

// StepSize records accepted step sizes. Value is the mean step magnitude.
type StepSize struct {
	name     string
	total    float64
	min, max float64
	steps    int
}

func NewStepSize() *StepSize {
	s := &StepSize{name: "mean_step"}
	s.Init(0, nil, 0)
	return s
}

func (s *StepSize) Name() string { return s.name }

func (s *StepSize) Init(t0 float64, y0 dynamo.State, t float64) {
	s.total = 0
	s.steps = 0
	s.min = math.Inf(1)
	s.max = 0
}

func (s *StepSize) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	h := math.Abs(interp.CurrentTime() - interp.PreviousTime())
	s.total += h
	s.steps++
	s.min = math.Min(s.min, h)
	s.max = math.Max(s.max, h)
	return nil
}

func (s *StepSize) Value() float64 {
	if s.steps == 0 {
		return 0
	}
	return s.total / float64(s.steps)
}

func (s *StepSize) Steps() int { return s.steps }

// Range returns the smallest and largest accepted step.
func (s *StepSize) Range() (min, max float64) {
	if s.steps == 0 {
		return 0, 0
	}
	return s.min, s.max
}
