package tile

import "iter"

// Range is a half-open box [Begin, End) of N-d coordinates.
type Range struct {
	Begin []int
	End   []int
}

// NewRange builds a range, copying its bounds.
func NewRange(begin, end []int) Range {
	return Range{
		Begin: append([]int(nil), begin...),
		End:   append([]int(nil), end...),
	}
}

// Full returns the range covering every coordinate of shape.
func Full(shape []int) Range {
	return NewRange(make([]int, len(shape)), shape)
}

// Empty reports whether the range holds no coordinate.
func (r Range) Empty() bool {
	for i := range r.Begin {
		if r.End[i] <= r.Begin[i] {
			return true
		}
	}
	return false
}

// Count returns the number of coordinates in the range.
func (r Range) Count() int {
	if r.Empty() {
		return 0
	}
	n := 1
	for i := range r.Begin {
		n *= r.End[i] - r.Begin[i]
	}
	return n
}

// Next advances coord to the following coordinate of [begin, end) with the
// first axis varying fastest. It returns false once the range is exhausted,
// in which case the returned coordinate is meaningless. coord is not modified.
func Next(coord, begin, end []int) ([]int, bool) {
	next := append([]int(nil), coord...)
	for k := range next {
		next[k]++
		if next[k] < end[k] {
			return next, true
		}
		next[k] = begin[k]
	}
	return nil, false
}

// All yields every coordinate of the range in column-major order. The yielded
// slice is owned by the caller. Each call restarts the sequence.
func (r Range) All() iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		if r.Empty() {
			return
		}
		coord := append([]int(nil), r.Begin...)
		for ok := true; ok; coord, ok = Next(coord, r.Begin, r.End) {
			if !yield(append([]int(nil), coord...)) {
				return
			}
		}
	}
}
