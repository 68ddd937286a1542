package integrators

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/dynamo"
)

// NordsieckTransformer converts between the multistep representation of an
// Adams method and the Nordsieck vector [h²/2 y'', h³/6 y''', ...].
// Row i of the Nordsieck matrix holds the order i+2 term for every component.
type NordsieckTransformer struct {
	nSteps int
	c1     []float64
	update *mat.Dense
}

// NewNordsieckTransformer builds the transformer of an nSteps method.
func NewNordsieckTransformer(nSteps int) (*NordsieckTransformer, error) {
	if nSteps < 2 {
		return nil, fmt.Errorf("%w: got %d", dynamo.ErrTooFewSteps, nSteps)
	}
	rows := nSteps - 1

	// P[i-1][j-1] = (j+1) * (-i)^j
	p := mat.NewDense(rows, rows, nil)
	for i := 1; i <= rows; i++ {
		factor := float64(-i)
		aj := factor
		for j := 1; j <= rows; j++ {
			p.Set(i-1, j-1, aj*float64(j+1))
			aj *= factor
		}
	}

	var lu mat.LU
	lu.Factorize(p)

	ones := make([]float64, rows)
	for i := range ones {
		ones[i] = 1
	}
	var c1 mat.VecDense
	if err := lu.SolveVecTo(&c1, false, mat.NewVecDense(rows, ones)); err != nil {
		return nil, fmt.Errorf("nordsieck transformer for %d steps: %w", nSteps, err)
	}

	// rows of P shifted down by one, first row zero
	shifted := mat.NewDense(rows, rows, nil)
	for i := rows - 1; i > 0; i-- {
		shifted.SetRow(i, p.RawRowView(i-1))
	}

	update := mat.NewDense(rows, rows, nil)
	if err := lu.SolveTo(update, false, shifted); err != nil {
		return nil, fmt.Errorf("nordsieck transformer for %d steps: %w", nSteps, err)
	}

	nt := &NordsieckTransformer{nSteps: nSteps, c1: make([]float64, rows), update: update}
	for i := range nt.c1 {
		nt.c1[i] = c1.AtVec(i)
	}
	return nt, nil
}

func (nt *NordsieckTransformer) NSteps() int { return nt.nSteps }

// InitializeHighOrderDerivatives estimates the Nordsieck vector at t[0] from
// a few points of a starter integration, by least squares over the Taylor
// relations of states and derivatives. The extra unknown absorbs the
// truncation remainder and is dropped.
func (nt *NordsieckTransformer) InitializeHighOrderDerivatives(h float64, t []float64, y, yDot []dynamo.State) (*mat.Dense, error) {
	size := len(nt.c1) + 1
	dim := len(y[0])
	a := mat.NewDense(size, size, nil)
	b := mat.NewDense(size, dim, nil)
	y0, yDot0 := y[0], yDot[0]

	for i := 1; i < len(y); i++ {
		di := t[i] - t[0]
		ratio := di / h
		dikM1Ohk := 1 / h

		row := 2*i - 2
		dotRow := 2*i - 1
		hasDot := dotRow < size
		if row >= size {
			break
		}
		for j := 0; j < size; j++ {
			dikM1Ohk *= ratio
			a.Set(row, j, di*dikM1Ohk)
			if hasDot {
				a.Set(dotRow, j, float64(j+2)*dikM1Ohk)
			}
		}
		for j := 0; j < dim; j++ {
			b.Set(row, j, y[i][j]-y0[j]-di*yDot0[j])
			if hasDot {
				b.Set(dotRow, j, yDot[i][j]-yDot0[j])
			}
		}
	}

	var qr mat.QR
	qr.Factorize(a)
	var x mat.Dense
	if err := qr.SolveTo(&x, false, b); err != nil {
		return nil, fmt.Errorf("nordsieck initialization: %w", err)
	}

	truncated := mat.NewDense(size-1, dim, nil)
	truncated.Copy(x.Slice(0, size-1, 0, dim))
	return truncated, nil
}

// UpdatePhase1 applies the update matrix: it shifts the high order terms to
// the end of the step without the new derivative.
func (nt *NordsieckTransformer) UpdatePhase1(highOrder *mat.Dense) *mat.Dense {
	_, cols := highOrder.Dims()
	out := mat.NewDense(len(nt.c1), cols, nil)
	out.Mul(nt.update, highOrder)
	return out
}

// UpdatePhase2 folds the difference between the scaled derivatives at the
// step start and end into highOrder.
func (nt *NordsieckTransformer) UpdatePhase2(start, end dynamo.State, highOrder *mat.Dense) {
	rows, cols := highOrder.Dims()
	for i := 0; i < rows; i++ {
		row := highOrder.RawRowView(i)
		ci := nt.c1[i]
		for j := 0; j < cols; j++ {
			row[j] += ci * (start[j] - end[j])
		}
	}
}

// rescaleNordsieck regenerates the scaled derivative and every high order
// row for a new step size: row k is multiplied by ratio^(k+2).
func rescaleNordsieck(scaled dynamo.State, nordsieck *mat.Dense, ratio float64) {
	for i := range scaled {
		scaled[i] *= ratio
	}
	rows, _ := nordsieck.Dims()
	power := ratio
	for k := 0; k < rows; k++ {
		power *= ratio
		row := nordsieck.RawRowView(k)
		for j := range row {
			row[j] *= power
		}
	}
}

// NordsieckInterpolator is the dense output of one multistep step. The
// Taylor expansion is anchored at the step end; the step start state is
// kept so that both boundaries are reproduced exactly.
type NordsieckInterpolator struct {
	prevTime  float64
	prevState dynamo.State
	prevDot   dynamo.State

	refTime   float64
	refState  dynamo.State
	refDot    dynamo.State
	h         float64
	scaled    dynamo.State
	nordsieck *mat.Dense
}

// NewNordsieckInterpolator copies its arguments. The reference point is
// (refTime, refState) with derivative refDot, expanded with step size h.
func NewNordsieckInterpolator(prevTime float64, prevState, prevDot dynamo.State,
	refTime float64, refState, refDot dynamo.State, h float64, scaled dynamo.State, nordsieck *mat.Dense) *NordsieckInterpolator {
	return &NordsieckInterpolator{
		prevTime:  prevTime,
		prevState: prevState.Clone(),
		prevDot:   prevDot.Clone(),
		refTime:   refTime,
		refState:  refState.Clone(),
		refDot:    refDot.Clone(),
		h:         h,
		scaled:    scaled.Clone(),
		nordsieck: mat.DenseCopyOf(nordsieck),
	}
}

func (n *NordsieckInterpolator) PreviousTime() float64 { return n.prevTime }
func (n *NordsieckInterpolator) CurrentTime() float64  { return n.refTime }
func (n *NordsieckInterpolator) IsForward() bool       { return n.refTime >= n.prevTime }
func (n *NordsieckInterpolator) Dimension() int        { return len(n.refState) }

func (n *NordsieckInterpolator) StateAt(t float64) (dynamo.State, dynamo.State) {
	switch t {
	case n.refTime:
		return n.refState.Clone(), n.refDot.Clone()
	case n.prevTime:
		return n.prevState.Clone(), n.prevDot.Clone()
	}
	return nordsieckEvaluate(n.refTime, n.refState, n.h, n.scaled, n.nordsieck, t)
}

func (n *NordsieckInterpolator) Copy() dynamo.StepInterpolator {
	return NewNordsieckInterpolator(n.prevTime, n.prevState, n.prevDot,
		n.refTime, n.refState, n.refDot, n.h, n.scaled, n.nordsieck)
}

// nordsieckEvaluate expands the Nordsieck representation anchored at
// (tRef, yRef) to time t. Terms are summed from high to low order.
func nordsieckEvaluate(tRef float64, yRef dynamo.State, h float64, scaled dynamo.State, nordsieck *mat.Dense, t float64) (dynamo.State, dynamo.State) {
	theta := (t - tRef) / h
	dim := len(yRef)
	variation := make(dynamo.State, dim)
	derivative := make(dynamo.State, dim)

	rows, _ := nordsieck.Dims()
	for k := rows - 1; k >= 0; k-- {
		order := float64(k + 2)
		power := math.Pow(theta, order-1)
		row := nordsieck.RawRowView(k)
		for j := 0; j < dim; j++ {
			d := row[j] * power
			variation[j] += d * theta
			derivative[j] += order * d
		}
	}

	y := make(dynamo.State, dim)
	for j := 0; j < dim; j++ {
		y[j] = yRef[j] + variation[j] + scaled[j]*theta
		derivative[j] = (derivative[j] + scaled[j]) / h
	}
	return y, derivative
}
