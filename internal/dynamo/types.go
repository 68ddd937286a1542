package dynamo

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// System is a primary set of first order equations dy/dt = f(t, y).
// Derive must not retain y and must return a vector of length Dimension().
type System interface {
	Dimension() int
	Derive(t float64, y State) (State, error)
}

// SecondarySystem is an auxiliary equations set integrated alongside a primary
// System. It sees the primary state y and derivative yDot but only its own
// sub-state z.
type SecondarySystem interface {
	Dimension() int
	Derive(t float64, y, yDot, z State) (State, error)
}

// JacobianSystem is a System able to compute dF/dY exactly.
type JacobianSystem interface {
	System
	StateJacobian(t float64, y, yDot State, dFdY *mat.Dense) error
}

type Parameterizable interface {
	Parameters() []string
	IsSupported(name string) bool
}

// ParameterizedSystem exposes named scalar parameters that can be perturbed
// to compute dF/dp by finite differences.
type ParameterizedSystem interface {
	Parameterizable
	Parameter(name string) (float64, error)
	SetParameter(name string, value float64) error
}

// ParameterJacobianProvider computes dF/dp exactly for the parameters it supports.
type ParameterJacobianProvider interface {
	Parameterizable
	ParameterJacobian(t float64, y, yDot State, name string, dFdP State) error
}

// StepInterpolator reconstructs the complete composite state inside one
// accepted step. Queries slightly outside [PreviousTime, CurrentTime] are
// extrapolated.
type StepInterpolator interface {
	PreviousTime() float64
	CurrentTime() float64
	IsForward() bool
	Dimension() int
	StateAt(t float64) (y, yDot State)
	Copy() StepInterpolator
}

type StepHandler interface {
	Init(t0 float64, y0 State, t float64)
	HandleStep(interp StepInterpolator, isLast bool) error
}

// Stopper is implemented by step handlers that may ask the running
// integrator to stop after the step they just handled. A stop request is
// not an error: the integrator returns normally at the current step end.
type Stopper interface {
	StopRequested() bool
}

// Integrator advances a Composite from its current time to t, reporting every
// accepted step to the registered handlers.
type Integrator interface {
	Name() string
	AddStepHandler(h StepHandler)
	ClearStepHandlers()
	Integrate(ctx context.Context, c *Composite, t float64) error
	Evaluations() int
}

// Stats summarizes one Integrate call.
type Stats struct {
	Steps       int
	Rejected    int
	Evaluations int
	LastStep    float64
}
