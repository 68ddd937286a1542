package dynamo

import (
	"errors"
	"testing"
)

type constSystem struct {
	dim   int
	value float64
}

func (c *constSystem) Dimension() int { return c.dim }
func (c *constSystem) Derive(t float64, y State) (State, error) {
	d := make(State, c.dim)
	for i := range d {
		d[i] = c.value
	}
	return d, nil
}

type echoSecondary struct {
	dim   int
	extra int
	seen  []float64
}

func (e *echoSecondary) Dimension() int { return e.dim }
func (e *echoSecondary) Derive(t float64, y, yDot, z State) (State, error) {
	e.seen = append(e.seen[:0], yDot...)
	d := make(State, e.dim+e.extra)
	for i := range z {
		d[i] = 2 * z[i]
	}
	return d, nil
}

func TestComposite_Placements(t *testing.T) {
	c := NewComposite(&constSystem{dim: 4})
	i1 := c.AddSecondary(&echoSecondary{dim: 3})
	i2 := c.AddSecondary(&echoSecondary{dim: 5})

	if c.Dimension() != 12 {
		t.Fatalf("expected dimension 12, got %d", c.Dimension())
	}

	m1, err := c.SecondaryMapper(i1)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := c.SecondaryMapper(i2)
	if err != nil {
		t.Fatal(err)
	}

	if m1.First != 4 || m1.End() != 7 {
		t.Errorf("secondary 1 at [%d,%d), want [4,7)", m1.First, m1.End())
	}
	if m2.First != 7 || m2.End() != 12 {
		t.Errorf("secondary 2 at [%d,%d), want [7,12)", m2.First, m2.End())
	}
}

func TestComposite_StateRoundTrip(t *testing.T) {
	c := NewComposite(&constSystem{dim: 2})
	idx := c.AddSecondary(&echoSecondary{dim: 3})

	y := State{1, 2, 3, 4, 5}
	if err := c.SetCompleteState(y); err != nil {
		t.Fatalf("SetCompleteState failed: %v", err)
	}

	z, err := c.SecondaryState(idx)
	if err != nil {
		t.Fatal(err)
	}
	if z[0] != 3 || z[2] != 5 {
		t.Errorf("secondary state = %v, want [3 4 5]", z)
	}

	got := c.CompleteState()
	for i := range y {
		if got[i] != y[i] {
			t.Errorf("component %d = %v, want %v", i, got[i], y[i])
		}
	}

	if err := c.SetCompleteState(State{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if err := c.SetSecondaryState(idx, State{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := c.SecondaryState(3); !errors.Is(err, ErrUnknownSecondary) {
		t.Errorf("expected ErrUnknownSecondary, got %v", err)
	}
}

func TestComposite_Derive(t *testing.T) {
	sec := &echoSecondary{dim: 2}
	c := NewComposite(&constSystem{dim: 2, value: 7})
	c.AddSecondary(sec)

	yDot, err := c.Derive(0, State{0, 0, 1, 3})
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	want := State{7, 7, 2, 6}
	for i := range want {
		if yDot[i] != want[i] {
			t.Errorf("yDot[%d] = %v, want %v", i, yDot[i], want[i])
		}
	}
	if len(sec.seen) != 2 || sec.seen[0] != 7 {
		t.Errorf("secondary did not see primary derivative, got %v", sec.seen)
	}
}

func TestComposite_DeriveDimensionMismatch(t *testing.T) {
	c := NewComposite(&constSystem{dim: 2})
	c.AddSecondary(&echoSecondary{dim: 2, extra: 1})

	if _, err := c.Derive(0, State{0, 0, 1, 1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := c.Derive(0, State{0, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for short state, got %v", err)
	}
}
