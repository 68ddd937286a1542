package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/dynamo"
	"github.com/san-kum/odesim/internal/sensitivity"
)

// IntegratorFactory builds the integrator used for one analysis run.
type IntegratorFactory func() (dynamo.Integrator, error)

// tangentFlow integrates a system together with its state Jacobian.
type tangentFlow struct {
	c     *dynamo.Composite
	j     *sensitivity.Jacobians
	integ dynamo.Integrator
}

func newTangentFlow(sys dynamo.System, factory IntegratorFactory, y0 dynamo.State) (*tangentFlow, error) {
	var (
		j   *sensitivity.Jacobians
		err error
	)
	if js, ok := sys.(dynamo.JacobianSystem); ok {
		j, err = sensitivity.NewWithJacobian(js)
	} else {
		hY := make([]float64, len(y0))
		for i, v := range y0 {
			hY[i] = 1e-7 * math.Max(1, math.Abs(v))
		}
		j, err = sensitivity.New(sys, hY)
	}
	if err != nil {
		return nil, err
	}

	c := dynamo.NewComposite(sys)
	if err := c.SetPrimaryState(y0); err != nil {
		return nil, err
	}
	if err := j.Register(c); err != nil {
		return nil, err
	}
	integ, err := factory()
	if err != nil {
		return nil, err
	}
	return &tangentFlow{c: c, j: j, integ: integ}, nil
}

// advance integrates one window starting from the tangent basis q and
// returns the propagated basis.
func (f *tangentFlow) advance(ctx context.Context, q mat.Matrix, window float64) (*mat.Dense, error) {
	if err := f.j.SetInitialStateJacobian(q); err != nil {
		return nil, err
	}
	if err := f.j.Reset(f.c); err != nil {
		return nil, err
	}
	if err := f.integ.Integrate(ctx, f.c, f.c.Time()+window); err != nil {
		return nil, err
	}
	return f.j.StateJacobian(f.c)
}

func checkWindows(window float64, windows int) error {
	if !(window > 0) || windows < 1 {
		return fmt.Errorf("%w: %d windows of %g", dynamo.ErrInvalidStep, windows, window)
	}
	return nil
}

// LyapunovExponent estimates the largest Lyapunov exponent by following a
// tangent vector through windows of the given length, renormalizing it
// after each window. A positive value indicates chaos.
func LyapunovExponent(ctx context.Context, sys dynamo.System, factory IntegratorFactory, y0 dynamo.State, window float64, windows int) (float64, error) {
	if err := checkWindows(window, windows); err != nil {
		return 0, err
	}
	flow, err := newTangentFlow(sys, factory, y0)
	if err != nil {
		return 0, err
	}

	n := len(y0)
	v := make([]float64, n)
	for i := range v {
		v[i] = 1 / math.Sqrt(float64(n))
	}
	identity := mat.NewDiagDense(n, nil)
	for i := 0; i < n; i++ {
		identity.SetDiag(i, 1)
	}

	sumLog := 0.0
	for w := 0; w < windows; w++ {
		phi, err := flow.advance(ctx, identity, window)
		if err != nil {
			return 0, fmt.Errorf("window %d: %w", w, err)
		}
		next := mat.NewVecDense(n, nil)
		next.MulVec(phi, mat.NewVecDense(n, v))
		norm := floats.Norm(next.RawVector().Data, 2)
		if norm == 0 || math.IsNaN(norm) {
			return 0, fmt.Errorf("window %d: %w", w, dynamo.ErrInvalidState)
		}
		sumLog += math.Log(norm)
		for i := range v {
			v[i] = next.AtVec(i) / norm
		}
	}
	return sumLog / (float64(windows) * window), nil
}

// LyapunovSpectrum computes every Lyapunov exponent, sorted in decreasing
// order, by QR orthonormalization of the tangent basis after each window.
func LyapunovSpectrum(ctx context.Context, sys dynamo.System, factory IntegratorFactory, y0 dynamo.State, window float64, windows int) ([]float64, error) {
	if err := checkWindows(window, windows); err != nil {
		return nil, err
	}
	flow, err := newTangentFlow(sys, factory, y0)
	if err != nil {
		return nil, err
	}

	n := len(y0)
	q := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		q.Set(i, i, 1)
	}

	sums := make([]float64, n)
	for w := 0; w < windows; w++ {
		phi, err := flow.advance(ctx, q, window)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", w, err)
		}

		var qr mat.QR
		qr.Factorize(phi)
		var r mat.Dense
		qr.QTo(q)
		qr.RTo(&r)
		for i := 0; i < n; i++ {
			rii := math.Abs(r.At(i, i))
			if rii == 0 || math.IsNaN(rii) {
				return nil, fmt.Errorf("window %d: %w", w, dynamo.ErrInvalidState)
			}
			sums[i] += math.Log(rii)
		}
	}

	total := float64(windows) * window
	for i := range sums {
		sums[i] /= total
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sums)))
	return sums, nil
}
