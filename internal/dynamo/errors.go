package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration operations.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf components.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// declared dimension of the equations set it belongs to.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrContextCanceled indicates the integration was interrupted.
	ErrContextCanceled = errors.New("dynamo: integration canceled by context")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrInvalidStep indicates a non-positive or non-finite step size.
	ErrInvalidStep = errors.New("dynamo: step size must be positive and finite")

	// ErrIntervalTooSmall indicates a target time indistinguishable from the start time.
	ErrIntervalTooSmall = errors.New("dynamo: integration interval too small")

	// ErrMaxEvaluations indicates the derivative evaluation budget was exhausted.
	ErrMaxEvaluations = errors.New("dynamo: maximal number of derivative evaluations exceeded")

	// ErrTooFewSteps indicates a multistep method configured with fewer than two points.
	ErrTooFewSteps = errors.New("dynamo: multistep method needs at least two previous points")

	// ErrStarterStoppedEarly indicates the bootstrap integrator reached the
	// target time before the multistep history was complete.
	ErrStarterStoppedEarly = errors.New("dynamo: multistep starter stopped before collecting enough points")

	// ErrInvalidTableau indicates inconsistent Butcher tableau coefficients.
	ErrInvalidTableau = errors.New("dynamo: invalid Butcher tableau")

	// ErrUnknownParameter indicates a parameter name no equations set declares.
	ErrUnknownParameter = errors.New("dynamo: unknown parameter")

	// ErrMismatchedEquations indicates equations registered against a
	// composite built around a different primary system.
	ErrMismatchedEquations = errors.New("dynamo: equations do not match the composite primary system")

	// ErrUnknownSecondary indicates an out of range secondary equations index.
	ErrUnknownSecondary = errors.New("dynamo: unknown secondary equations index")

	// ErrEmptyTrajectory indicates a query on a trajectory with no steps.
	ErrEmptyTrajectory = errors.New("dynamo: trajectory has no steps")

	// ErrTimeGap indicates two trajectories whose time ranges do not join.
	ErrTimeGap = errors.New("dynamo: hole between trajectory time ranges")

	// ErrDirectionMismatch indicates trajectories integrated in opposite directions.
	ErrDirectionMismatch = errors.New("dynamo: propagation direction mismatch")
)

// IntegrationError wraps an error with the step and time it occurred at.
type IntegrationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *IntegrationError) Unwrap() error {
	return e.Wrapped
}
