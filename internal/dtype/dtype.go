// Package dtype holds the closed set of element kinds a tensor may carry.
package dtype

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
)

// Float is the constraint every generic numeric routine is written against.
// Exactly two kinds are supported.
type Float interface {
	float32 | float64
}

// DType represents runtime type information for tiles.
type DType int

const (
	Float32 DType = iota
	Float64
)

// Size returns the byte size of one element.
func (dt DType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

func (dt DType) String() string {
	switch dt {
	case Float32:
		return "fp32"
	case Float64:
		return "fp64"
	default:
		return "unknown"
	}
}

// Of returns the DType of T.
func Of[T Float]() DType {
	var z T
	switch any(z).(type) {
	case float32:
		return Float32
	default:
		return Float64
	}
}

// SizeOf returns the byte size of one element of T.
func SizeOf[T Float]() int {
	return Of[T]().Size()
}

// Epsilon is the machine epsilon of T.
func Epsilon[T Float]() T {
	var z T
	switch any(z).(type) {
	case float32:
		return T(math.Nextafter32(1, 2) - 1)
	default:
		return T(math.Nextafter(1, 2) - 1)
	}
}

// FromBytes reinterprets b as a slice of T without copying.
func FromBytes[T Float](b []byte) []T {
	var z T
	switch any(z).(type) {
	case float32:
		return any(arrow.Float32Traits.CastFromBytes(b)).([]T)
	default:
		return any(arrow.Float64Traits.CastFromBytes(b)).([]T)
	}
}

// ToBytes reinterprets s as raw bytes without copying.
func ToBytes[T Float](s []T) []byte {
	switch v := any(s).(type) {
	case []float32:
		return arrow.Float32Traits.CastToBytes(v)
	case []float64:
		return arrow.Float64Traits.CastToBytes(v)
	}
	return nil
}

// Ints reinterprets b as a slice of int64, used for index scratch space.
func Ints(b []byte) []int64 {
	return arrow.Int64Traits.CastFromBytes(b)
}
