package metrics

import (
	"math"

	"github.com/san-kum/odesim/internal/dynamo"
)

// Stability is the fraction of steps whose end state stays inside the box
// |y_i| <= threshold. Non-finite states always count as violations.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Init(t0 float64, y0 dynamo.State, t float64) {
	s.violations = 0
	s.samples = 0
}

func (s *Stability) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	y, _ := interp.StateAt(interp.CurrentTime())
	s.samples++
	if !y.IsValid() {
		s.violations++
		return nil
	}
	for _, val := range y {
		if math.Abs(val) > s.threshold {
			s.violations++
			break
		}
	}
	return nil
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}
