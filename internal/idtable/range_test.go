package idtable

import "testing"

func TestNewRangeSwapsReversedLimits(t *testing.T) {
	r := NewRange(15, 10)
	if r.Low != 10 || r.High != 15 {
		t.Fatalf("NewRange(15, 10) = %v, want (10-15)", r)
	}
}

func TestRangeSkip(t *testing.T) {
	r := NewRange(10, 15)
	cases := map[int]int{
		9:  9,
		10: 16,
		12: 16,
		15: 16,
		16: 16,
		40: 40,
	}
	for in, want := range cases {
		if got := r.Skip(in); got != want {
			t.Errorf("Skip(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRangeString(t *testing.T) {
	if got := NewRange(3, 7).String(); got != "(3-7)" {
		t.Errorf("String() = %q", got)
	}
}
