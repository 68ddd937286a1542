package physics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/dynamo"
)

// VanDerPol implements the Van der Pol oscillator.
// State: [x, y] where y = dx/dt
// Equations:
//
//	dx/dt = y
//	dy/dt = μ(1 - x²)y - x
type VanDerPol struct {
	params
	Mu float64 // Nonlinearity parameter
}

func NewVanDerPol() *VanDerPol {
	v := &VanDerPol{
		Mu: 1.0, // Classic value for limit cycle
	}
	v.bind("mu", &v.Mu)
	return v
}

func (v *VanDerPol) Dimension() int { return 2 }

func (v *VanDerPol) Derive(t float64, state dynamo.State) (dynamo.State, error) {
	x, y := state[0], state[1]

	dx := y
	dy := v.Mu*(1-x*x)*y - x

	return dynamo.State{dx, dy}, nil
}

func (v *VanDerPol) StateJacobian(t float64, state, stateDot dynamo.State, dFdY *mat.Dense) error {
	x, y := state[0], state[1]
	dFdY.SetRow(0, []float64{0, 1})
	dFdY.SetRow(1, []float64{-2*v.Mu*x*y - 1, v.Mu * (1 - x*x)})
	return nil
}

func (v *VanDerPol) ParameterJacobian(t float64, state, stateDot dynamo.State, name string, dFdP dynamo.State) error {
	if name != "mu" {
		return unknown(name)
	}
	x, y := state[0], state[1]
	dFdP[0] = 0
	dFdP[1] = (1 - x*x) * y
	return nil
}

func (v *VanDerPol) DefaultState() dynamo.State {
	return dynamo.State{2.0, 0.0}
}
