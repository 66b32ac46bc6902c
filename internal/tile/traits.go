// Package tile describes the geometry of a single N-dimensional block of
// data stored in column-major (Fortran) order.
package tile

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidDimension is returned when a shape entry is not positive.
	ErrInvalidDimension = errors.New("invalid dimension")
	// ErrDimensionMismatch is returned when ranks or shapes of two geometries disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Traits holds the integer properties of a tile. It is immutable once
// constructed; accessors hand out copies.
type Traits struct {
	shape  []int
	stride []int
	nelems int
	// matrixShape[i] is the tile viewed as a matrix split at axis i.
	matrixShape [][2]int
}

// NewTraits builds tile traits for the given shape. A zero-length shape
// describes a scalar.
func NewTraits(shape []int) (Traits, error) {
	ndim := len(shape)
	for i, dim := range shape {
		if dim <= 0 {
			return Traits{}, errors.Wrapf(ErrInvalidDimension,
				"shape[%d]=%d must be positive", i, dim)
		}
	}
	t := Traits{
		shape:       append([]int(nil), shape...),
		stride:      make([]int, ndim),
		nelems:      1,
		matrixShape: make([][2]int, ndim+1),
	}
	for i := 0; i < ndim; i++ {
		t.stride[i] = t.nelems
		t.nelems *= shape[i]
	}
	// Left part grows while the right part shrinks.
	left, right := 1, t.nelems
	for i := 0; i <= ndim; i++ {
		t.matrixShape[i] = [2]int{left, right}
		if i < ndim {
			left *= shape[i]
			right /= shape[i]
		}
	}
	return t, nil
}

// MustTraits is NewTraits for shapes known to be valid.
func MustTraits(shape []int) Traits {
	t, err := NewTraits(shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Ndim returns the number of dimensions.
func (t Traits) Ndim() int { return len(t.shape) }

// Shape returns a copy of the shape.
func (t Traits) Shape() []int { return append([]int(nil), t.shape...) }

// Dim returns the extent along axis i.
func (t Traits) Dim(i int) int { return t.shape[i] }

// Stride returns a copy of the column-major strides.
func (t Traits) Stride() []int { return append([]int(nil), t.stride...) }

// Nelems returns the number of elements.
func (t Traits) Nelems() int { return t.nelems }

// MatrixShape returns (rows, cols) of the tile reshaped into a matrix split
// at axis i, for i in [0, ndim].
func (t Traits) MatrixShape(i int) (int, int) {
	return t.matrixShape[i][0], t.matrixShape[i][1]
}

// LinearToIndex converts a linear offset into an N-d coordinate.
func (t Traits) LinearToIndex(offset int) []int {
	index := make([]int, len(t.shape))
	for i, dim := range t.shape {
		index[i] = offset % dim
		offset /= dim
	}
	return index
}

// IndexToLinear converts an N-d coordinate into a linear offset.
func (t Traits) IndexToLinear(index []int) int {
	offset := 0
	for i := len(t.shape) - 1; i >= 0; i-- {
		offset = offset*t.shape[i] + index[i]
	}
	return offset
}

// ContainsIndex reports whether index lies inside the tile.
func (t Traits) ContainsIndex(index []int) bool {
	if len(index) != len(t.shape) {
		return false
	}
	for i, v := range index {
		if v < 0 || v >= t.shape[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two traits describe the same shape.
func (t Traits) Equal(o Traits) bool {
	return EqualInts(t.shape, o.shape)
}

func (t Traits) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ndim=%d shape=%s stride=%s nelems=%d matrix_shape=(",
		len(t.shape), formatInts(t.shape), formatInts(t.stride), t.nelems)
	for i, ms := range t.matrixShape {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "(%d,%d)", ms[0], ms[1])
	}
	b.WriteByte(')')
	return b.String()
}

// EqualInts compares two integer vectors.
func EqualInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprint(x)
	}
	return "(" + strings.Join(parts, ",") + ")"
}
