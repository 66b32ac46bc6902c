// Package tensor splits N-dimensional arrays into tiles distributed across
// ranks and runs operations over them as tasks.
package tensor

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/23skdu/longbow-tessera/internal/tile"
)

var (
	ErrInvalidDimension    = tile.ErrInvalidDimension
	ErrDimensionMismatch   = tile.ErrDimensionMismatch
	ErrInvalidDistribution = errors.New("invalid distribution")
)

// Traits describes how a tensor of a given shape is tiled. Every tile has
// the base tile shape except the last one along each axis, which has the
// leftover shape.
type Traits struct {
	tile.Traits
	basetile []int
	leftover []int
	grid     tile.Traits
}

// NewTraits tiles shape with basetile.
func NewTraits(shape, basetile []int) (Traits, error) {
	if len(shape) != len(basetile) {
		return Traits{}, errors.Wrapf(ErrDimensionMismatch,
			"shape has %d dimensions, basetile %d", len(shape), len(basetile))
	}
	t, err := tile.NewTraits(shape)
	if err != nil {
		return Traits{}, err
	}
	gridShape := make([]int, len(shape))
	leftover := make([]int, len(shape))
	for i := range shape {
		if basetile[i] <= 0 {
			return Traits{}, errors.Wrapf(ErrInvalidDimension,
				"basetile[%d]=%d must be positive", i, basetile[i])
		}
		gridShape[i] = (shape[i]-1)/basetile[i] + 1
		leftover[i] = shape[i] - (gridShape[i]-1)*basetile[i]
	}
	grid, err := tile.NewTraits(gridShape)
	if err != nil {
		return Traits{}, err
	}
	return Traits{
		Traits:   t,
		basetile: append([]int(nil), basetile...),
		leftover: leftover,
		grid:     grid,
	}, nil
}

// MustTraits is NewTraits for geometries known to be valid.
func MustTraits(shape, basetile []int) Traits {
	t, err := NewTraits(shape, basetile)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Traits) Basetile() []int   { return append([]int(nil), t.basetile...) }
func (t Traits) Leftover() []int   { return append([]int(nil), t.leftover...) }
func (t Traits) Grid() tile.Traits { return t.grid }

// TileShape returns the shape of the tile at grid coordinate index.
func (t Traits) TileShape(index []int) []int {
	shape := make([]int, len(index))
	for i, v := range index {
		if v == t.grid.Dim(i)-1 {
			shape[i] = t.leftover[i]
		} else {
			shape[i] = t.basetile[i]
		}
	}
	return shape
}

// TileTraits returns the traits of the tile with linear grid offset i.
func (t Traits) TileTraits(i int) tile.Traits {
	return tile.MustTraits(t.TileShape(t.grid.LinearToIndex(i)))
}

// TileStart returns the first element coordinate covered by the tile at
// grid coordinate index.
func (t Traits) TileStart(index []int) []int {
	start := make([]int, len(index))
	for i, v := range index {
		start[i] = v * t.basetile[i]
	}
	return start
}

// SameTiling reports whether both traits have equal shape and base tile.
func (t Traits) SameTiling(o Traits) bool {
	return tile.EqualInts(t.Shape(), o.Shape()) && tile.EqualInts(t.basetile, o.basetile)
}

func (t Traits) String() string {
	return fmt.Sprintf("%s basetile=%v leftover=%v grid=%v",
		t.Traits.String(), t.basetile, t.leftover, t.grid.Shape())
}
