package physics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/dynamo"
)

// Decay is dy/dt = -k y on every component.
type Decay struct {
	params
	Rate float64
	dim  int
}

func NewDecay(dim int) *Decay {
	if dim < 1 {
		dim = 1
	}
	d := &Decay{Rate: 1.0, dim: dim}
	d.bind("k", &d.Rate)
	return d
}

func (d *Decay) Dimension() int { return d.dim }

func (d *Decay) Derive(t float64, y dynamo.State) (dynamo.State, error) {
	out := make(dynamo.State, d.dim)
	for i := range out {
		out[i] = -d.Rate * y[i]
	}
	return out, nil
}

func (d *Decay) StateJacobian(t float64, y, yDot dynamo.State, dFdY *mat.Dense) error {
	dFdY.Zero()
	for i := 0; i < d.dim; i++ {
		dFdY.Set(i, i, -d.Rate)
	}
	return nil
}

func (d *Decay) ParameterJacobian(t float64, y, yDot dynamo.State, name string, dFdP dynamo.State) error {
	if name != "k" {
		return unknown(name)
	}
	for i := range dFdP {
		dFdP[i] = -y[i]
	}
	return nil
}

func (d *Decay) DefaultState() dynamo.State {
	s := make(dynamo.State, d.dim)
	for i := range s {
		s[i] = 1
	}
	return s
}

// Solution returns the closed form state at t from y0 at 0.
func (d *Decay) Solution(y0 dynamo.State, t float64) dynamo.State {
	return y0.Scale(math.Exp(-d.Rate * t))
}
