package tensor

import (
	"github.com/pkg/errors"

	"github.com/23skdu/longbow-tessera/internal/codelets"
	"github.com/23skdu/longbow-tessera/internal/dtype"
	"github.com/23skdu/longbow-tessera/internal/runtime"
	"github.com/23skdu/longbow-tessera/internal/tile"
)

// Block is a rectangular region copied from one source tile into one
// destination tile. Starts are local to each tile.
type Block struct {
	SrcTile  int
	SrcStart []int
	DstStart []int
	Shape    []int
	Mode     runtime.AccessMode
}

// TilePlan lists the blocks that land in one destination tile, in
// submission order. Mode is W when the blocks cover the whole tile.
type TilePlan struct {
	DstTile int
	Mode    runtime.AccessMode
	Blocks  []Block

	srcShape []int
	dstShape []int
}

// WholeTile reports whether the tile is filled by copying a single source
// tile of identical shape in full.
func (p TilePlan) WholeTile() bool {
	if len(p.Blocks) != 1 || p.Mode != runtime.W {
		return false
	}
	b := p.Blocks[0]
	return tile.EqualInts(b.Shape, p.srcShape) && tile.EqualInts(b.Shape, p.dstShape)
}

// PlanIntersection computes how the part of src overlapping dst is copied
// tile by tile. Offsets place both tensors in a shared global index space:
// element x of src sits at srcOffset+x. A nil plan means the tensors do not
// overlap.
func PlanIntersection(src Traits, srcOffset []int, dst Traits, dstOffset []int) ([]TilePlan, error) {
	ndim := src.Ndim()
	if dst.Ndim() != ndim {
		return nil, errors.Wrapf(ErrDimensionMismatch, "src has %d dimensions, dst %d", ndim, dst.Ndim())
	}
	if len(srcOffset) != ndim || len(dstOffset) != ndim {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"offsets of length %d and %d for %d dimensions", len(srcOffset), len(dstOffset), ndim)
	}

	if ndim == 0 {
		return []TilePlan{{
			DstTile:  0,
			Mode:     runtime.W,
			Blocks:   []Block{{Mode: runtime.W}},
			srcShape: []int{},
			dstShape: []int{},
		}}, nil
	}

	if src.SameTiling(dst) && tile.EqualInts(srcOffset, dstOffset) {
		plans := make([]TilePlan, dst.grid.Nelems())
		for i := range plans {
			shape := dst.TileTraits(i).Shape()
			plans[i] = TilePlan{
				DstTile: i,
				Mode:    runtime.W,
				Blocks: []Block{{
					SrcTile:  i,
					SrcStart: make([]int, ndim),
					DstStart: make([]int, ndim),
					Shape:    shape,
					Mode:     runtime.W,
				}},
				srcShape: shape,
				dstShape: shape,
			}
		}
		return plans, nil
	}

	// Intersection in tensor-local coordinates of both sides.
	srcStart := make([]int, ndim)
	dstStart := make([]int, ndim)
	copyShape := make([]int, ndim)
	dstBegin := make([]int, ndim)
	dstEnd := make([]int, ndim)
	for i := 0; i < ndim; i++ {
		lo := max(srcOffset[i], dstOffset[i])
		hi := min(srcOffset[i]+src.Dim(i), dstOffset[i]+dst.Dim(i))
		if hi <= lo {
			return nil, nil
		}
		srcStart[i] = lo - srcOffset[i]
		dstStart[i] = lo - dstOffset[i]
		copyShape[i] = hi - lo
		dstBegin[i] = dstStart[i] / dst.basetile[i]
		dstEnd[i] = (dstStart[i]+copyShape[i]-1)/dst.basetile[i] + 1
	}

	var plans []TilePlan
	for dstIndex := range tile.NewRange(dstBegin, dstEnd).All() {
		plans = append(plans, planTile(src, dst, dstIndex, srcStart, dstStart, copyShape))
	}
	return plans, nil
}

// planTile splits the copy region falling into one destination tile by
// source tile.
func planTile(src, dst Traits, dstIndex, srcStart, dstStart, copyShape []int) TilePlan {
	ndim := len(dstIndex)
	dstTileStart := dst.TileStart(dstIndex)
	dstShape := dst.TileShape(dstIndex)

	// lo/hi bound the covered part of the tile in dst tensor coordinates.
	lo := make([]int, ndim)
	hi := make([]int, ndim)
	srcBegin := make([]int, ndim)
	srcEnd := make([]int, ndim)
	mode := runtime.W
	for k := 0; k < ndim; k++ {
		lo[k] = max(dstTileStart[k], dstStart[k])
		hi[k] = min(dstTileStart[k]+dstShape[k], dstStart[k]+copyShape[k])
		if lo[k] != dstTileStart[k] || hi[k] != dstTileStart[k]+dstShape[k] {
			mode = runtime.RW
		}
		s := lo[k] - dstStart[k] + srcStart[k]
		e := hi[k] - dstStart[k] + srcStart[k]
		srcBegin[k] = s / src.basetile[k]
		srcEnd[k] = (e-1)/src.basetile[k] + 1
	}

	plan := TilePlan{
		DstTile:  dst.grid.IndexToLinear(dstIndex),
		Mode:     mode,
		dstShape: dstShape,
	}
	for srcIndex := range tile.NewRange(srcBegin, srcEnd).All() {
		srcTileStart := src.TileStart(srcIndex)
		srcShape := src.TileShape(srcIndex)
		b := Block{
			SrcTile:  src.grid.IndexToLinear(srcIndex),
			SrcStart: make([]int, ndim),
			DstStart: make([]int, ndim),
			Shape:    make([]int, ndim),
			Mode:     runtime.RWCommute,
		}
		for k := 0; k < ndim; k++ {
			// Clip the source tile to the covered range, in src coordinates.
			s := max(lo[k]-dstStart[k]+srcStart[k], srcTileStart[k])
			e := min(hi[k]-dstStart[k]+srcStart[k], srcTileStart[k]+srcShape[k])
			b.SrcStart[k] = s - srcTileStart[k]
			b.DstStart[k] = s - srcStart[k] + dstStart[k] - dstTileStart[k]
			b.Shape[k] = e - s
		}
		if len(plan.Blocks) == 0 {
			b.Mode = mode
			plan.srcShape = srcShape
		}
		plan.Blocks = append(plan.Blocks, b)
	}
	return plan
}

// CopyIntersectionAsync copies the overlap of src and dst, placed at the
// given global offsets, into dst. Elements of dst outside the overlap are
// untouched. Every rank must make the same call.
func CopyIntersectionAsync[T dtype.Float](src *Tensor[T], srcOffset []int, dst *Tensor[T], dstOffset []int) error {
	plans, err := PlanIntersection(src.Traits, srcOffset, dst.Traits, dstOffset)
	if err != nil {
		return err
	}
	ctx := dst.ctx
	rank := ctx.Rank()

	var scratch *runtime.Handle
	defer func() {
		if scratch != nil {
			_ = scratch.Unregister()
		}
	}()

	for _, p := range plans {
		dstHandle := dst.handles[p.DstTile]
		owner := dst.distr[p.DstTile]
		dstTraits := dst.TileTraits(p.DstTile)

		for _, b := range p.Blocks {
			srcHandle := src.handles[b.SrcTile]
			if err := ctx.GetDataOnNode(srcHandle, owner); err != nil {
				return errors.Wrapf(err, "fetch src tile %d", b.SrcTile)
			}
			if rank != owner {
				continue
			}
			if src.Ndim() == 0 || p.WholeTile() {
				if err := ctx.DataCopy(srcHandle, dstHandle); err != nil {
					return err
				}
				continue
			}
			if scratch == nil {
				scratch, err = ctx.Allocate(codelets.IndexScratchSize(src.Ndim()), runtime.Scratch)
				if err != nil {
					return err
				}
			}
			err := codelets.SubmitSubcopy[T](ctx,
				b.SrcStart, src.TileTraits(b.SrcTile).Stride(), b.Shape, srcHandle,
				b.DstStart, dstTraits.Stride(), dstHandle, b.Mode, scratch)
			if err != nil {
				return err
			}
		}
		ctx.CacheFlush(dstHandle)
	}
	return nil
}

// CopyIntersection is CopyIntersectionAsync followed by a wait for all
// tasks.
func CopyIntersection[T dtype.Float](src *Tensor[T], srcOffset []int, dst *Tensor[T], dstOffset []int) error {
	return runSync(dst.ctx, "tensor.CopyIntersection", func() error {
		return CopyIntersectionAsync(src, srcOffset, dst, dstOffset)
	})
}
