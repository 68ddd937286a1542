// Package sensitivity integrates the variational equations of a primary
// system alongside it.
//
// A [Jacobians] adds one secondary equations set to a dynamo.Composite
// holding dY/dY0 (n×n, row-major) followed by one dY/dp column per selected
// parameter:
//
//	d(dY/dY0)/dt = dF/dY · dY/dY0
//	d(dY/dp)/dt  = dF/dY · dY/dp + dF/dp
//
// dF/dY comes from a [dynamo.JacobianSystem] or from finite differences.
// dF/dp comes from registered [dynamo.ParameterJacobianProvider] values,
// falling back to finite differences on a [dynamo.ParameterizedSystem].
// Parameters nobody can differentiate get a zero derivative.
package sensitivity
