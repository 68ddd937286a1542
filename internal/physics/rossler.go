package physics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/dynamo"
)

type Rossler struct {
	params
	A, B, C float64
}

func NewRossler() *Rossler {
	r := &Rossler{A: 0.2, B: 0.2, C: 5.7}
	r.bind("a", &r.A)
	r.bind("b", &r.B)
	r.bind("c", &r.C)
	return r
}

func (r *Rossler) Dimension() int { return 3 }

// Derive calculates the Rossler attractor derivatives.
func (r *Rossler) Derive(t float64, s dynamo.State) (dynamo.State, error) {
	return dynamo.State{-s[1] - s[2], s[0] + r.A*s[1], r.B + s[2]*(s[0]-r.C)}, nil
}

func (r *Rossler) StateJacobian(t float64, s, sDot dynamo.State, dFdY *mat.Dense) error {
	dFdY.SetRow(0, []float64{0, -1, -1})
	dFdY.SetRow(1, []float64{1, r.A, 0})
	dFdY.SetRow(2, []float64{s[2], 0, s[0] - r.C})
	return nil
}

func (r *Rossler) ParameterJacobian(t float64, s, sDot dynamo.State, name string, dFdP dynamo.State) error {
	zero(dFdP)
	switch name {
	case "a":
		dFdP[1] = s[1]
	case "b":
		dFdP[2] = 1
	case "c":
		dFdP[2] = -s[2]
	default:
		return unknown(name)
	}
	return nil
}

func (r *Rossler) DefaultState() dynamo.State { return dynamo.State{1.0, 1.0, 1.0} }
