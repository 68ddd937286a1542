package dynamo

import "fmt"

// EquationsMapper locates one equations set inside the complete state vector.
type EquationsMapper struct {
	First int
	Dim   int
}

// End returns the index just past the last component of the set.
func (m EquationsMapper) End() int { return m.First + m.Dim }

// Slice returns a view of the set's components; writes go through to complete.
func (m EquationsMapper) Slice(complete State) State {
	return complete[m.First:m.End():m.End()]
}

// Extract copies the set's components out of complete.
func (m EquationsMapper) Extract(complete State) State {
	return m.Slice(complete).Clone()
}

// Insert copies part into its placement in complete.
func (m EquationsMapper) Insert(part, complete State) error {
	if len(part) != m.Dim {
		return fmt.Errorf("%w: got %d components, want %d", ErrDimensionMismatch, len(part), m.Dim)
	}
	if len(complete) < m.End() {
		return fmt.Errorf("%w: complete state has %d components, need %d", ErrDimensionMismatch, len(complete), m.End())
	}
	copy(complete[m.First:m.End()], part)
	return nil
}
