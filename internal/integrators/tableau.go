package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/odesim/internal/dynamo"
)

// Tableau holds the Butcher coefficients of an explicit Runge-Kutta method.
// A is strictly lower triangular and stored by rows: A[i] has i entries.
// E, when present, holds the embedded error coefficients (B - Bhat).
type Tableau struct {
	Name  string
	Order int
	C     []float64
	A     [][]float64
	B     []float64
	E     []float64
	FSAL  bool
}

func (tab Tableau) Stages() int { return len(tab.C) }

// Embedded reports whether the tableau carries an error estimator.
func (tab Tableau) Embedded() bool { return len(tab.E) > 0 }

func (tab Tableau) Validate() error {
	s := len(tab.C)
	if s == 0 {
		return fmt.Errorf("%w: %s has no stages", dynamo.ErrInvalidTableau, tab.Name)
	}
	if len(tab.A) != s || len(tab.B) != s {
		return fmt.Errorf("%w: %s needs %d rows in A and %d weights", dynamo.ErrInvalidTableau, tab.Name, s, s)
	}
	if tab.E != nil && len(tab.E) != s {
		return fmt.Errorf("%w: %s has %d error coefficients, want %d", dynamo.ErrInvalidTableau, tab.Name, len(tab.E), s)
	}
	if tab.C[0] != 0 {
		return fmt.Errorf("%w: %s first node must be 0", dynamo.ErrInvalidTableau, tab.Name)
	}
	for i, row := range tab.A {
		if len(row) != i {
			return fmt.Errorf("%w: %s row %d has %d coefficients, want %d", dynamo.ErrInvalidTableau, tab.Name, i, len(row), i)
		}
		sum := 0.0
		for _, a := range row {
			sum += a
		}
		if math.Abs(sum-tab.C[i]) > 1e-12 {
			return fmt.Errorf("%w: %s row %d sums to %g, node is %g", dynamo.ErrInvalidTableau, tab.Name, i, sum, tab.C[i])
		}
	}
	sum := 0.0
	for _, b := range tab.B {
		sum += b
	}
	if math.Abs(sum-1) > 1e-12 {
		return fmt.Errorf("%w: %s weights sum to %g", dynamo.ErrInvalidTableau, tab.Name, sum)
	}
	return nil
}

func Euler() Tableau {
	return Tableau{
		Name:  "euler",
		Order: 1,
		C:     []float64{0},
		A:     [][]float64{{}},
		B:     []float64{1},
	}
}

func Midpoint() Tableau {
	return Tableau{
		Name:  "midpoint",
		Order: 2,
		C:     []float64{0, 0.5},
		A:     [][]float64{{}, {0.5}},
		B:     []float64{0, 1},
	}
}

func ClassicalRK4() Tableau {
	return Tableau{
		Name:  "rk4",
		Order: 4,
		C:     []float64{0, 0.5, 0.5, 1},
		A: [][]float64{
			{},
			{0.5},
			{0, 0.5},
			{0, 0, 1},
		},
		B: []float64{1.0 / 6.0, 1.0 / 3.0, 1.0 / 3.0, 1.0 / 6.0},
	}
}

func ThreeEighths() Tableau {
	return Tableau{
		Name:  "3/8",
		Order: 4,
		C:     []float64{0, 1.0 / 3.0, 2.0 / 3.0, 1},
		A: [][]float64{
			{},
			{1.0 / 3.0},
			{-1.0 / 3.0, 1},
			{1, -1, 1},
		},
		B: []float64{1.0 / 8.0, 3.0 / 8.0, 3.0 / 8.0, 1.0 / 8.0},
	}
}

// Gill is the fourth order method of Gill, tuned to limit round-off.
func Gill() Tableau {
	sq2 := math.Sqrt2
	return Tableau{
		Name:  "gill",
		Order: 4,
		C:     []float64{0, 0.5, 0.5, 1},
		A: [][]float64{
			{},
			{0.5},
			{(sq2 - 1) / 2, (2 - sq2) / 2},
			{0, -sq2 / 2, 1 + sq2/2},
		},
		B: []float64{1.0 / 6.0, (2 - sq2) / 6, (2 + sq2) / 6, 1.0 / 6.0},
	}
}

// Dormand-Prince 5(4) coefficients
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// DormandPrince54 is the embedded 5(4) pair. The last stage is evaluated at
// the step end, so its derivative is reused as the first stage of the next step.
func DormandPrince54() Tableau {
	return Tableau{
		Name:  "dopri54",
		Order: 5,
		C:     []float64{0, a2, a3, a4, a5, 1, 1},
		A: [][]float64{
			{},
			{b21},
			{b31, b32},
			{b41, b42, b43},
			{b51, b52, b53, b54},
			{b61, b62, b63, b64, b65},
			{c1, 0, c3, c4, c5, c6},
		},
		B:    []float64{c1, 0, c3, c4, c5, c6, 0},
		E:    []float64{dc1, 0, dc3, dc4, dc5, dc6, dc7},
		FSAL: true,
	}
}

// TableauByName returns one of the built-in tableaux.
func TableauByName(name string) (Tableau, bool) {
	switch name {
	case "euler":
		return Euler(), true
	case "midpoint":
		return Midpoint(), true
	case "rk4", "classical":
		return ClassicalRK4(), true
	case "3/8", "three-eighths":
		return ThreeEighths(), true
	case "gill":
		return Gill(), true
	case "dopri54", "rk45":
		return DormandPrince54(), true
	}
	return Tableau{}, false
}

// TableauNames lists the names accepted by TableauByName.
func TableauNames() []string {
	return []string{"euler", "midpoint", "rk4", "3/8", "gill", "dopri54"}
}
