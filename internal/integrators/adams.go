package integrators

// AdamsBashforth is the explicit Adams multistep integrator. With nSteps
// points of history it is of order nSteps.
type AdamsBashforth struct {
	*Multistep
}

func NewAdamsBashforth(nSteps int, minStep, maxStep, absTol, relTol float64, opts ...Option) (*AdamsBashforth, error) {
	m, err := newMultistep("adams-bashforth", nSteps, nSteps, false, minStep, maxStep, absTol, relTol, opts)
	if err != nil {
		return nil, err
	}
	return &AdamsBashforth{Multistep: m}, nil
}

// AdamsMoulton is the implicit Adams integrator run as a predictor-corrector
// (PECE) sequence. With nSteps points of history it is of order nSteps+1.
type AdamsMoulton struct {
	*Multistep
}

func NewAdamsMoulton(nSteps int, minStep, maxStep, absTol, relTol float64, opts ...Option) (*AdamsMoulton, error) {
	m, err := newMultistep("adams-moulton", nSteps, nSteps+1, true, minStep, maxStep, absTol, relTol, opts)
	if err != nil {
		return nil, err
	}
	return &AdamsMoulton{Multistep: m}, nil
}
