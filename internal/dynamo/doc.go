// Package dynamo provides the core primitives of the integration engine.
//
// The package defines the state model and the contracts every integrator,
// equations set and step handler agrees on:
//
//   - [State]: flat vector of float64 components
//   - [System]: primary equations dy/dt = f(t, y)
//   - [SecondarySystem]: auxiliary equations integrated alongside the primary
//   - [Composite]: primary plus secondaries presented as one flat vector
//   - [StepInterpolator]: dense output inside one accepted step
//   - [StepHandler]: receives every accepted step
//   - [Integrator]: drives a Composite to a target time
//
// Optional capabilities are discovered with interface assertions:
// [JacobianSystem] for exact dF/dY, [ParameterizedSystem] and
// [ParameterJacobianProvider] for parameter sensitivities, [Stopper] for
// handlers that end an integration early without an error.
//
// # Example
//
//	c := dynamo.NewComposite(physics.NewLorenz())
//	_ = c.SetPrimaryState(dynamo.State{1, 1, 1})
//	integ, _ := integrators.NewAdamsMoulton(4, 1e-8, 0.5, 1e-10, 1e-10)
//	traj := trajectory.New()
//	integ.AddStepHandler(traj)
//	err := integ.Integrate(ctx, c, 10)
//
// # Thread Safety
//
// Composite and integrator instances are NOT thread-safe. The stateless
// single step routines in package integrators are safe for concurrent use
// when the underlying System is.
package dynamo
