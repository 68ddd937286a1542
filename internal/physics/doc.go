// Package physics provides sample dynamical systems for the integrators.
//
// Every model implements [dynamo.System] together with the optional
// capabilities used by sensitivity analysis:
//
//   - [dynamo.JacobianSystem]: exact dF/dY
//   - [dynamo.ParameterizedSystem]: named parameters
//   - [dynamo.ParameterJacobianProvider]: exact dF/dp
//
// Models:
//
//   - [Decay]: exponential decay, closed form solution
//   - [Pendulum]: damped nonlinear pendulum
//   - [VanDerPol]: relaxation oscillator with a limit cycle
//   - [Lorenz]: butterfly attractor
//   - [Rossler]: spiral attractor
//   - [Duffing]: forced nonlinear oscillator
//
// # Energy
//
// Conservative models expose Energy for drift monitoring:
//
//	p := physics.NewPendulum()
//	p.Damping = 0
//	e := p.Energy(state)
package physics
