package tensor

import (
	"github.com/pkg/errors"

	"github.com/23skdu/longbow-tessera/internal/codelets"
	"github.com/23skdu/longbow-tessera/internal/dtype"
	"github.com/23skdu/longbow-tessera/internal/kernel"
)

func checkConv2D(src, kern, dst Traits) error {
	ndim := src.Ndim()
	if ndim != 2 && ndim != 3 {
		return errors.Wrapf(ErrDimensionMismatch, "conv2d needs 2 or 3 dimensions, got %d", ndim)
	}
	if kern.Ndim() != ndim || dst.Ndim() != ndim {
		return errors.Wrapf(ErrDimensionMismatch, "conv2d operands have %d, %d and %d dimensions",
			ndim, kern.Ndim(), dst.Ndim())
	}
	for i := 0; i < 2; i++ {
		if want := src.Dim(i) + kern.Dim(i) - 1; dst.Dim(i) != want {
			return errors.Wrapf(ErrDimensionMismatch, "dst dimension %d is %d, want %d", i, dst.Dim(i), want)
		}
	}
	if ndim == 3 {
		if err := checkAxis("batch of src and kernel", src, 2, kern, 2); err != nil {
			return err
		}
		if err := checkAxis("batch of src and dst", src, 2, dst, 2); err != nil {
			return err
		}
	}
	return nil
}

// Conv2DAsync computes the full 2-D convolution of src with kern into dst
// over the first two axes. A third axis, if present, is a batch: each batch
// entry of src is convolved with the same entry of kern.
func Conv2DAsync[T dtype.Float](src, kern, dst *Tensor[T]) error {
	if err := checkConv2D(src.Traits, kern.Traits, dst.Traits); err != nil {
		return err
	}
	if err := ClearAsync(dst); err != nil {
		return err
	}
	ctx := dst.ctx
	batched := src.Ndim() == 3

	for di := range dst.handles {
		dIndex := dst.grid.LinearToIndex(di)
		dStart := dst.TileStart(dIndex)
		dShape := dst.TileShape(dIndex)
		owner := dst.distr[di]
		dh := dst.handles[di]

		for si := range src.handles {
			sIndex := src.grid.LinearToIndex(si)
			if batched && sIndex[2] != dIndex[2] {
				continue
			}
			sStart := src.TileStart(sIndex)
			sShape := src.TileShape(sIndex)

			for ki := range kern.handles {
				kIndex := kern.grid.LinearToIndex(ki)
				if batched && kIndex[2] != dIndex[2] {
					continue
				}
				kStart := kern.TileStart(kIndex)
				kShape := kern.TileShape(kIndex)

				args := kernel.Conv2DArgs{
					OffsetX: dStart[0] - sStart[0] - kStart[0],
					OffsetY: dStart[1] - sStart[1] - kStart[1],
					Batch:   1,
					SrcX:    sShape[0],
					SrcY:    sShape[1],
					KernelX: kShape[0],
					KernelY: kShape[1],
					DstX:    dShape[0],
					DstY:    dShape[1],
				}
				if batched {
					args.Batch = dShape[2]
				}
				if !args.Overlaps() {
					continue
				}
				if err := ctx.GetDataOnNode(src.handles[si], owner); err != nil {
					return errors.Wrapf(err, "fetch src tile %d", si)
				}
				if err := ctx.GetDataOnNode(kern.handles[ki], owner); err != nil {
					return errors.Wrapf(err, "fetch kernel tile %d", ki)
				}
				if ctx.Rank() != owner {
					continue
				}
				if err := codelets.SubmitConv2D[T](ctx, args, src.handles[si], kern.handles[ki], dh); err != nil {
					return err
				}
			}
		}
		ctx.CacheFlush(dh)
	}
	return nil
}

func Conv2D[T dtype.Float](src, kern, dst *Tensor[T]) error {
	return runSync(dst.ctx, "tensor.Conv2D", func() error {
		return Conv2DAsync(src, kern, dst)
	})
}
