package tensor

import (
	"github.com/pkg/errors"

	"github.com/23skdu/longbow-tessera/internal/tile"
)

// BlockCyclic assigns an owner rank to every tile of a tensor grid by
// tiling the grid with a process grid. Tiles whose coordinates agree modulo
// procGrid share an owner. Ranks are shifted by startRank and wrapped at
// maxRank; startRank must not be negative. The result is indexed by linear
// (column-major) tile offset.
func BlockCyclic(tensorGrid, procGrid []int, startRank, maxRank int) ([]int, error) {
	if len(tensorGrid) != len(procGrid) {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"tensor grid has %d dimensions, process grid %d", len(tensorGrid), len(procGrid))
	}
	if maxRank <= 0 || startRank < 0 {
		return nil, errors.Wrapf(ErrInvalidDimension, "start rank %d, max rank %d", startRank, maxRank)
	}
	for i := range procGrid {
		if procGrid[i] <= 0 {
			return nil, errors.Wrapf(ErrInvalidDimension, "axis %d: process grid %d", i, procGrid[i])
		}
	}
	grid, err := tile.NewTraits(tensorGrid)
	if err != nil {
		return nil, err
	}

	out := make([]int, grid.Nelems())
	for coord := range tile.Full(tensorGrid).All() {
		rank := 0
		for j := len(coord) - 1; j >= 0; j-- {
			rank = rank*procGrid[j] + coord[j]%procGrid[j]
		}
		out[grid.IndexToLinear(coord)] = (rank + startRank) % maxRank
	}
	return out, nil
}
