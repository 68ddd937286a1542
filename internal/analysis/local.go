package analysis

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/integrators"
)

// referenceSubsteps splits the comparison step for the Dormand-Prince
// reference.
const referenceSubsteps = 32

// OneStepErrors returns the local error of a single tab step of size h from
// each state, measured in the max norm against a finely subdivided
// Dormand-Prince solution. Every state starts at t0, so the states should
// come from an autonomous system when they were sampled at other times.
func OneStepErrors(ctx context.Context, tab integrators.Tableau, sys dynamo.System, t0 float64, states []dynamo.State, h float64) ([]float64, error) {
	if h == 0 || len(states) == 0 {
		return nil, fmt.Errorf("%w: one-step errors need h != 0 and states", dynamo.ErrInvalidStep)
	}
	got, err := integrators.StepBatch(ctx, tab, sys, t0, states, t0+h)
	if err != nil {
		return nil, err
	}

	ref := integrators.DormandPrince54()
	cur := states
	sub := h / referenceSubsteps
	for k := range referenceSubsteps {
		if cur, err = integrators.StepBatch(ctx, ref, sys, t0+float64(k)*sub, cur, t0+float64(k+1)*sub); err != nil {
			return nil, err
		}
	}

	errs := make([]float64, len(states))
	for i := range errs {
		errs[i] = floats.Distance(got[i], cur[i], math.Inf(1))
	}
	return errs, nil
}

// EmpiricalOrder estimates the order p of tab from the largest local
// errors at h and h/2, which scale as h^(p+1).
func EmpiricalOrder(ctx context.Context, tab integrators.Tableau, sys dynamo.System, t0 float64, states []dynamo.State, h float64) (float64, error) {
	full, err := OneStepErrors(ctx, tab, sys, t0, states, h)
	if err != nil {
		return 0, err
	}
	half, err := OneStepErrors(ctx, tab, sys, t0, states, h/2)
	if err != nil {
		return 0, err
	}
	return math.Log2(floats.Max(full)/floats.Max(half)) - 1, nil
}
