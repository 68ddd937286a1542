package integrators

import "github.com/san-kum/odesim/internal/dynamo"

// HermiteInterpolator is the cubic Hermite dense output of one step, built
// from the states and derivatives at both ends. Both ends are reproduced
// exactly.
type HermiteInterpolator struct {
	t0, t1       float64
	y0, y1       dynamo.State
	yDot0, yDot1 dynamo.State
}

// NewHermiteInterpolator copies its arguments.
func NewHermiteInterpolator(t0 float64, y0, yDot0 dynamo.State, t1 float64, y1, yDot1 dynamo.State) *HermiteInterpolator {
	return &HermiteInterpolator{
		t0: t0, t1: t1,
		y0: y0.Clone(), y1: y1.Clone(),
		yDot0: yDot0.Clone(), yDot1: yDot1.Clone(),
	}
}

func (h *HermiteInterpolator) PreviousTime() float64 { return h.t0 }
func (h *HermiteInterpolator) CurrentTime() float64  { return h.t1 }
func (h *HermiteInterpolator) IsForward() bool       { return h.t1 >= h.t0 }
func (h *HermiteInterpolator) Dimension() int        { return len(h.y0) }

func (h *HermiteInterpolator) StateAt(t float64) (dynamo.State, dynamo.State) {
	switch t {
	case h.t0:
		return h.y0.Clone(), h.yDot0.Clone()
	case h.t1:
		return h.y1.Clone(), h.yDot1.Clone()
	}

	dt := h.t1 - h.t0
	theta := (t - h.t0) / dt
	theta2 := theta * theta
	theta3 := theta2 * theta

	h00 := 2*theta3 - 3*theta2 + 1
	h10 := theta3 - 2*theta2 + theta
	h01 := -2*theta3 + 3*theta2
	h11 := theta3 - theta2

	d00 := 6*theta2 - 6*theta
	d10 := 3*theta2 - 4*theta + 1
	d01 := -d00
	d11 := 3*theta2 - 2*theta

	n := len(h.y0)
	y := make(dynamo.State, n)
	yDot := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		y[i] = h00*h.y0[i] + h10*dt*h.yDot0[i] + h01*h.y1[i] + h11*dt*h.yDot1[i]
		yDot[i] = (d00*h.y0[i]+d01*h.y1[i])/dt + d10*h.yDot0[i] + d11*h.yDot1[i]
	}
	return y, yDot
}

func (h *HermiteInterpolator) Copy() dynamo.StepInterpolator {
	return NewHermiteInterpolator(h.t0, h.y0, h.yDot0, h.t1, h.y1, h.yDot1)
}
