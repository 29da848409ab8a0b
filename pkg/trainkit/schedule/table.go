package schedule

// Table is a schedule over an explicit list of values.
// Positions before the first entry read the first value; positions past the
// last entry read the last value.
type Table struct {
	values []float64
	pos    int
}

// Compile-time interface check.
var _ Schedule = (*Table)(nil)

// NewTable creates a table schedule starting at position 0.
// An empty table always reports 0.
func NewTable(values ...float64) *Table {
	stored := make([]float64, len(values))
	copy(stored, values)
	return &Table{values: stored}
}

// Value implements Schedule.
func (t *Table) Value() float64 {
	return t.at(t.pos)
}

// Advance implements Schedule.
func (t *Table) Advance() float64 {
	prev := t.at(t.pos)
	t.pos++
	return prev
}

// Seek implements Schedule.
func (t *Table) Seek(position int) {
	t.pos = position
}

// Position implements Schedule.
func (t *Table) Position() int {
	return t.pos
}

// Len returns the number of explicit entries.
func (t *Table) Len() int {
	return len(t.values)
}

func (t *Table) at(position int) float64 {
	switch {
	case len(t.values) == 0:
		return 0
	case position < 0:
		return t.values[0]
	case position >= len(t.values):
		return t.values[len(t.values)-1]
	}
	return t.values[position]
}
