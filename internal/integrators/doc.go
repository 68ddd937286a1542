// Package integrators implements the steppers that drive a dynamo.Composite:
//
//   - [RungeKutta]: fixed step explicit Runge-Kutta from a [Tableau]
//   - [Embedded]: adaptive embedded Runge-Kutta (Dormand-Prince 5(4))
//   - [AdamsBashforth], [AdamsMoulton]: adaptive Nordsieck multistep methods
//
// Every accepted step is reported to the registered step handlers together
// with an interpolator covering the step. [SingleStep] and [StepBatch] are
// the stateless entry points for one step from many independent states.
package integrators
