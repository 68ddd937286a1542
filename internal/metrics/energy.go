package metrics

import (
	"math"

	"github.com/san-kum/odesim/internal/dynamo"
)

// Conserved is implemented by systems with a first integral.
type Conserved interface {
	Energy(y dynamo.State) float64
}

// EnergyDrift tracks the largest relative departure of the energy from its
// initial value, sampled at every step end.
type EnergyDrift struct {
	name          string
	sys           Conserved
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(sys Conserved) *EnergyDrift {
	return &EnergyDrift{
		name: "energy_drift",
		sys:  sys,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Init(t0 float64, y0 dynamo.State, t float64) {
	e.initialEnergy = e.sys.Energy(y0)
	e.currentEnergy = e.initialEnergy
	e.maxDrift = 0
	e.samples = 1
}

func (e *EnergyDrift) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	y, _ := interp.StateAt(interp.CurrentTime())
	energy := e.sys.Energy(y)
	e.currentEnergy = energy
	e.samples++

	drift := math.Abs(energy - e.initialEnergy)
	if e.initialEnergy != 0 {
		drift /= math.Abs(e.initialEnergy)
	}
	e.maxDrift = math.Max(e.maxDrift, drift)
	return nil
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

// Current returns the energy at the last handled step.
func (e *EnergyDrift) Current() float64 { return e.currentEnergy }

func (e *EnergyDrift) Samples() int { return e.samples }
