package dynamo

import "fmt"

type secondary struct {
	sys    SecondarySystem
	mapper EquationsMapper
	state  State
}

// Composite presents a primary System and its secondary equations sets as a
// single flat state vector. Secondary sets must all be added before the
// first integration; their placements never move afterwards.
type Composite struct {
	primary      System
	primaryMap   EquationsMapper
	primaryState State
	secondaries  []secondary
	time         float64
}

func NewComposite(primary System) *Composite {
	n := primary.Dimension()
	return &Composite{
		primary:      primary,
		primaryMap:   EquationsMapper{First: 0, Dim: n},
		primaryState: make(State, n),
	}
}

func (c *Composite) Primary() System { return c.primary }

func (c *Composite) PrimaryMapper() EquationsMapper { return c.primaryMap }

func (c *Composite) SecondaryMappers() []EquationsMapper {
	mappers := make([]EquationsMapper, len(c.secondaries))
	for i, s := range c.secondaries {
		mappers[i] = s.mapper
	}
	return mappers
}

// AddSecondary appends a secondary equations set after the last registered
// one and returns its index.
func (c *Composite) AddSecondary(s SecondarySystem) int {
	first := c.primaryMap.End()
	if len(c.secondaries) > 0 {
		first = c.secondaries[len(c.secondaries)-1].mapper.End()
	}
	c.secondaries = append(c.secondaries, secondary{
		sys:    s,
		mapper: EquationsMapper{First: first, Dim: s.Dimension()},
		state:  make(State, s.Dimension()),
	})
	return len(c.secondaries) - 1
}

func (c *Composite) NumSecondaries() int { return len(c.secondaries) }

// Dimension returns the total dimension of the complete state vector.
func (c *Composite) Dimension() int {
	if len(c.secondaries) == 0 {
		return c.primaryMap.Dim
	}
	return c.secondaries[len(c.secondaries)-1].mapper.End()
}

func (c *Composite) Time() float64 { return c.time }

func (c *Composite) SetTime(t float64) { c.time = t }

func (c *Composite) PrimaryState() State { return c.primaryState.Clone() }

func (c *Composite) SetPrimaryState(y State) error {
	if len(y) != c.primaryMap.Dim {
		return fmt.Errorf("%w: primary state has %d components, want %d", ErrDimensionMismatch, len(y), c.primaryMap.Dim)
	}
	copy(c.primaryState, y)
	return nil
}

func (c *Composite) SecondaryMapper(index int) (EquationsMapper, error) {
	if index < 0 || index >= len(c.secondaries) {
		return EquationsMapper{}, fmt.Errorf("%w: %d", ErrUnknownSecondary, index)
	}
	return c.secondaries[index].mapper, nil
}

func (c *Composite) SecondaryState(index int) (State, error) {
	if index < 0 || index >= len(c.secondaries) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSecondary, index)
	}
	return c.secondaries[index].state.Clone(), nil
}

func (c *Composite) SetSecondaryState(index int, z State) error {
	if index < 0 || index >= len(c.secondaries) {
		return fmt.Errorf("%w: %d", ErrUnknownSecondary, index)
	}
	s := c.secondaries[index]
	if len(z) != s.mapper.Dim {
		return fmt.Errorf("%w: secondary %d state has %d components, want %d", ErrDimensionMismatch, index, len(z), s.mapper.Dim)
	}
	copy(s.state, z)
	return nil
}

// CompleteState assembles the flat state vector.
func (c *Composite) CompleteState() State {
	y := make(State, c.Dimension())
	copy(y, c.primaryState)
	for _, s := range c.secondaries {
		copy(y[s.mapper.First:s.mapper.End()], s.state)
	}
	return y
}

// SetCompleteState dispatches a flat state vector to the equations sets.
func (c *Composite) SetCompleteState(y State) error {
	if len(y) != c.Dimension() {
		return fmt.Errorf("%w: complete state has %d components, want %d", ErrDimensionMismatch, len(y), c.Dimension())
	}
	copy(c.primaryState, c.primaryMap.Slice(y))
	for _, s := range c.secondaries {
		copy(s.state, s.mapper.Slice(y))
	}
	return nil
}

// Derive computes the derivative of the complete state. The primary set is
// evaluated first so that every secondary set sees the primary derivative.
func (c *Composite) Derive(t float64, y State) (State, error) {
	if len(y) != c.Dimension() {
		return nil, fmt.Errorf("%w: complete state has %d components, want %d", ErrDimensionMismatch, len(y), c.Dimension())
	}

	primaryY := c.primaryMap.Slice(y)
	primaryDot, err := c.primary.Derive(t, primaryY)
	if err != nil {
		return nil, err
	}
	if len(primaryDot) != c.primaryMap.Dim {
		return nil, fmt.Errorf("%w: primary derivative has %d components, want %d", ErrDimensionMismatch, len(primaryDot), c.primaryMap.Dim)
	}

	yDot := make(State, len(y))
	copy(yDot, primaryDot)

	for i, s := range c.secondaries {
		zDot, err := s.sys.Derive(t, primaryY, primaryDot, s.mapper.Slice(y))
		if err != nil {
			return nil, err
		}
		if len(zDot) != s.mapper.Dim {
			return nil, fmt.Errorf("%w: secondary %d derivative has %d components, want %d", ErrDimensionMismatch, i, len(zDot), s.mapper.Dim)
		}
		copy(yDot[s.mapper.First:s.mapper.End()], zDot)
	}

	return yDot, nil
}
