package idtable

import "fmt"

// Range is a closed interval of integers to be skipped once during
// allocation for one category.
type Range struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// NewRange returns the range between a and b, whichever order they come in.
func NewRange(a, b int) Range {
	if a > b {
		a, b = b, a
	}
	return Range{Low: a, High: b}
}

// Skip maps a candidate inside the range to the first value past it.
// Candidates outside the range are returned unchanged.
func (r Range) Skip(v int) int {
	if v < r.Low || v > r.High {
		return v
	}
	return r.High + 1
}

// Passed reports whether v lies beyond the range, which retires it.
func (r Range) Passed(v int) bool {
	return v > r.High
}

func (r Range) String() string {
	return fmt.Sprintf("(%d-%d)", r.Low, r.High)
}
