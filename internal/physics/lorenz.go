package physics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/dynamo"
)

type Lorenz struct {
	params
	Sigma, Rho, Beta float64
}

func NewLorenz() *Lorenz {
	l := &Lorenz{Sigma: 10.0, Rho: 28.0, Beta: 8.0 / 3.0}
	l.bind("sigma", &l.Sigma)
	l.bind("rho", &l.Rho)
	l.bind("beta", &l.Beta)
	return l
}

func (l *Lorenz) Dimension() int { return 3 }

// Derive calculates the Lorenz attractor derivatives.
func (l *Lorenz) Derive(t float64, s dynamo.State) (dynamo.State, error) {
	return dynamo.State{l.Sigma * (s[1] - s[0]), s[0]*(l.Rho-s[2]) - s[1], s[0]*s[1] - l.Beta*s[2]}, nil
}

func (l *Lorenz) StateJacobian(t float64, s, sDot dynamo.State, dFdY *mat.Dense) error {
	x, y, z := s[0], s[1], s[2]
	dFdY.SetRow(0, []float64{-l.Sigma, l.Sigma, 0})
	dFdY.SetRow(1, []float64{l.Rho - z, -1, -x})
	dFdY.SetRow(2, []float64{y, x, -l.Beta})
	return nil
}

func (l *Lorenz) ParameterJacobian(t float64, s, sDot dynamo.State, name string, dFdP dynamo.State) error {
	zero(dFdP)
	switch name {
	case "sigma":
		dFdP[0] = s[1] - s[0]
	case "rho":
		dFdP[1] = s[0]
	case "beta":
		dFdP[2] = -s[2]
	default:
		return unknown(name)
	}
	return nil
}

func (l *Lorenz) DefaultState() dynamo.State { return dynamo.State{1.0, 1.0, 1.0} }
