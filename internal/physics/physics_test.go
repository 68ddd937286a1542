package physics

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odesim/internal/dynamo"
)

type model interface {
	dynamo.JacobianSystem
	dynamo.ParameterizedSystem
	dynamo.ParameterJacobianProvider
	DefaultState() dynamo.State
}

func models() map[string]model {
	return map[string]model{
		"decay":     NewDecay(3),
		"lorenz":    NewLorenz(),
		"rossler":   NewRossler(),
		"vanderpol": NewVanDerPol(),
		"pendulum":  NewPendulum(),
		"duffing":   NewDuffing(),
	}
}

func testState(dim int) dynamo.State {
	y := make(dynamo.State, dim)
	for i := range y {
		y[i] = 0.3 + 0.7*float64(i+1)
	}
	return y
}

func TestStateJacobians(t *testing.T) {
	for name, m := range models() {
		t.Run(name, func(t *testing.T) {
			n := m.Dimension()
			y := testState(n)
			yDot, err := m.Derive(0, y)
			if err != nil {
				t.Fatal(err)
			}
			if len(yDot) != n {
				t.Fatalf("derivative has %d components, want %d", len(yDot), n)
			}

			exact := mat.NewDense(n, n, nil)
			if err := m.StateJacobian(0, y, yDot, exact); err != nil {
				t.Fatal(err)
			}

			const h = 1e-6
			for j := 0; j < n; j++ {
				plus, minus := y.Clone(), y.Clone()
				plus[j] += h
				minus[j] -= h
				fp, _ := m.Derive(0, plus)
				fm, _ := m.Derive(0, minus)
				for i := 0; i < n; i++ {
					fd := (fp[i] - fm[i]) / (2 * h)
					if math.Abs(fd-exact.At(i, j)) > 1e-5*math.Max(1, math.Abs(fd)) {
						t.Errorf("dF%d/dY%d = %v, finite difference %v", i, j, exact.At(i, j), fd)
					}
				}
			}
		})
	}
}

func TestParameterJacobians(t *testing.T) {
	for name, m := range models() {
		t.Run(name, func(t *testing.T) {
			n := m.Dimension()
			y := testState(n)
			yDot, _ := m.Derive(0, y)

			for _, p := range m.Parameters() {
				if !m.IsSupported(p) {
					t.Errorf("declared parameter %q not supported", p)
				}
				exact := make(dynamo.State, n)
				if err := m.ParameterJacobian(0, y, yDot, p, exact); err != nil {
					t.Fatal(err)
				}

				v, err := m.Parameter(p)
				if err != nil {
					t.Fatal(err)
				}
				h := 1e-6 * math.Max(1, math.Abs(v))
				_ = m.SetParameter(p, v+h)
				fp, _ := m.Derive(0, y)
				_ = m.SetParameter(p, v-h)
				fm, _ := m.Derive(0, y)
				_ = m.SetParameter(p, v)

				for i := 0; i < n; i++ {
					fd := (fp[i] - fm[i]) / (2 * h)
					if math.Abs(fd-exact[i]) > 1e-5*math.Max(1, math.Abs(fd)) {
						t.Errorf("dF%d/d%s = %v, finite difference %v", i, p, exact[i], fd)
					}
				}
			}
		})
	}
}

func TestUnknownParameter(t *testing.T) {
	for name, m := range models() {
		if _, err := m.Parameter("nope"); !errors.Is(err, dynamo.ErrUnknownParameter) {
			t.Errorf("%s: Parameter: expected ErrUnknownParameter, got %v", name, err)
		}
		if err := m.SetParameter("nope", 1); !errors.Is(err, dynamo.ErrUnknownParameter) {
			t.Errorf("%s: SetParameter: expected ErrUnknownParameter, got %v", name, err)
		}
		dFdP := make(dynamo.State, m.Dimension())
		if err := m.ParameterJacobian(0, m.DefaultState(), nil, "nope", dFdP); !errors.Is(err, dynamo.ErrUnknownParameter) {
			t.Errorf("%s: ParameterJacobian: expected ErrUnknownParameter, got %v", name, err)
		}
	}
}

func TestPendulumEnergy(t *testing.T) {
	p := NewPendulum()
	if e := p.Energy(dynamo.State{0, 0}); e != 0 {
		t.Errorf("rest energy = %v, want 0", e)
	}
	if e := p.Energy(dynamo.State{math.Pi, 0}); math.Abs(e-2*9.81) > 1e-12 {
		t.Errorf("inverted energy = %v, want %v", e, 2*9.81)
	}
}

func TestDecaySolution(t *testing.T) {
	d := NewDecay(2)
	d.Rate = 0.5
	y := d.Solution(dynamo.State{2, 4}, 2)
	if math.Abs(y[0]-2*math.Exp(-1)) > 1e-15 || math.Abs(y[1]-4*math.Exp(-1)) > 1e-15 {
		t.Errorf("Solution = %v", y)
	}
	if v := d.Values()["k"]; v != 0.5 {
		t.Errorf("Values()[k] = %v", v)
	}
}

func TestDoublePendulumEnergy(t *testing.T) {
	d := NewDoublePendulum()
	if e := d.Energy(dynamo.State{0, 0, 0, 0}); math.Abs(e+3*9.81) > 1e-12 {
		t.Errorf("rest energy = %v, want %v", e, -3*9.81)
	}
	if e := d.Energy(d.DefaultState()); math.Abs(e-9.81) > 1e-12 {
		t.Errorf("default energy = %v, want %v", e, 9.81)
	}
}

func TestDoublePendulumRest(t *testing.T) {
	d := NewDoublePendulum()
	yDot, err := d.Derive(0, dynamo.State{0, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range yDot {
		if v != 0 {
			t.Errorf("yDot[%d] = %v at rest", i, v)
		}
	}

	// released from rest with the lower rod vertical
	yDot, _ = d.Derive(0, dynamo.State{0.1, 0, 0, 0})
	if want := -9.81 * math.Sin(0.1) * 2 / (2 - math.Cos(0.1)*math.Cos(0.1)); math.Abs(yDot[2]-want) > 1e-12 {
		t.Errorf("alpha1 = %v, want %v", yDot[2], want)
	}
}
