package physics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/dynamo"
)

// Pendulum is a damped pendulum. State: [theta, omega].
type Pendulum struct {
	params
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	p := &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.1,
		Gravity: 9.81,
	}
	p.bind("mass", &p.Mass)
	p.bind("length", &p.Length)
	p.bind("damping", &p.Damping)
	p.bind("gravity", &p.Gravity)
	return p
}

func (p *Pendulum) Dimension() int { return 2 }

func (p *Pendulum) Derive(t float64, x dynamo.State) (dynamo.State, error) {
	theta := x[0]
	omega := x[1]

	alpha := (-p.Damping*omega - p.Mass*p.Gravity*p.Length*math.Sin(theta)) / (p.Mass * p.Length * p.Length)

	return dynamo.State{omega, alpha}, nil
}

func (p *Pendulum) StateJacobian(t float64, x, xDot dynamo.State, dFdY *mat.Dense) error {
	mL2 := p.Mass * p.Length * p.Length
	dFdY.SetRow(0, []float64{0, 1})
	dFdY.SetRow(1, []float64{-p.Gravity / p.Length * math.Cos(x[0]), -p.Damping / mL2})
	return nil
}

func (p *Pendulum) ParameterJacobian(t float64, x, xDot dynamo.State, name string, dFdP dynamo.State) error {
	theta, omega := x[0], x[1]
	mL2 := p.Mass * p.Length * p.Length
	dFdP[0] = 0
	switch name {
	case "mass":
		dFdP[1] = p.Damping * omega / (p.Mass * mL2)
	case "length":
		dFdP[1] = 2*p.Damping*omega/(mL2*p.Length) + p.Gravity*math.Sin(theta)/(p.Length*p.Length)
	case "damping":
		dFdP[1] = -omega / mL2
	case "gravity":
		dFdP[1] = -math.Sin(theta) / p.Length
	default:
		return unknown(name)
	}
	return nil
}

func (p *Pendulum) DefaultState() dynamo.State { return dynamo.State{math.Pi / 4, 0} }

func (p *Pendulum) Energy(x dynamo.State) float64 {
	// KE = 0.5 * m * (L*omega)^2
	// PE = m * g * L * (1 - cos(theta))
	v := p.Length * x[1]
	ke := 0.5 * p.Mass * v * v
	pe := p.Mass * p.Gravity * p.Length * (1.0 - math.Cos(x[0]))
	return ke + pe
}
