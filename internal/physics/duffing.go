package physics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/dynamo"
)

// Duffing implements a nonlinear forced oscillator. The forcing phase is
// carried as a third state component so the system stays autonomous.
type Duffing struct {
	params
	Alpha, Beta, Delta, Gamma, Omega float64
}

func NewDuffing() *Duffing {
	d := &Duffing{Alpha: -1.0, Beta: 1.0, Delta: 0.3, Gamma: 0.5, Omega: 1.2}
	d.bind("alpha", &d.Alpha)
	d.bind("beta", &d.Beta)
	d.bind("delta", &d.Delta)
	d.bind("gamma", &d.Gamma)
	d.bind("omega", &d.Omega)
	return d
}

func (d *Duffing) Dimension() int { return 3 }

func (d *Duffing) Derive(t float64, s dynamo.State) (dynamo.State, error) {
	x, v, phi := s[0], s[1], s[2]
	return dynamo.State{v, -d.Delta*v - d.Alpha*x - d.Beta*x*x*x + d.Gamma*math.Cos(phi), d.Omega}, nil
}

func (d *Duffing) StateJacobian(t float64, s, sDot dynamo.State, dFdY *mat.Dense) error {
	x, phi := s[0], s[2]
	dFdY.SetRow(0, []float64{0, 1, 0})
	dFdY.SetRow(1, []float64{-d.Alpha - 3*d.Beta*x*x, -d.Delta, -d.Gamma * math.Sin(phi)})
	dFdY.SetRow(2, []float64{0, 0, 0})
	return nil
}

func (d *Duffing) ParameterJacobian(t float64, s, sDot dynamo.State, name string, dFdP dynamo.State) error {
	x, v, phi := s[0], s[1], s[2]
	zero(dFdP)
	switch name {
	case "alpha":
		dFdP[1] = -x
	case "beta":
		dFdP[1] = -x * x * x
	case "delta":
		dFdP[1] = -v
	case "gamma":
		dFdP[1] = math.Cos(phi)
	case "omega":
		dFdP[2] = 1
	default:
		return unknown(name)
	}
	return nil
}

func (d *Duffing) DefaultState() dynamo.State { return dynamo.State{1.0, 0.0, 0.0} }

func (d *Duffing) Energy(s dynamo.State) float64 {
	x, v := s[0], s[1]
	return 0.5*v*v + 0.5*d.Alpha*x*x + 0.25*d.Beta*x*x*x*x
}
