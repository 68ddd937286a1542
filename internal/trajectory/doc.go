// Package trajectory stores the dense output of an integration and answers
// state queries at arbitrary times inside the integrated range.
//
// A [Model] is a dynamo.StepHandler: register it on an integrator and it
// keeps an independent copy of every accepted step. Models of consecutive
// integrations can be concatenated with [Model.Append].
package trajectory
