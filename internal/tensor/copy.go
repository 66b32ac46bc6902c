package tensor

import (
	"github.com/pkg/errors"

	"github.com/23skdu/longbow-tessera/internal/dtype"
)

func checkSameTiling(src, dst Traits) error {
	if !src.SameTiling(dst) {
		return errors.Wrapf(ErrDimensionMismatch, "tiling %s does not match %s", src, dst)
	}
	return nil
}

// CopyAsync copies src into dst tile by tile. Both tensors must share shape
// and base tile; their distributions may differ.
func CopyAsync[T dtype.Float](src, dst *Tensor[T]) error {
	if err := checkSameTiling(src.Traits, dst.Traits); err != nil {
		return err
	}
	ctx := dst.ctx
	rank := ctx.Rank()
	for i, dh := range dst.handles {
		sh := src.handles[i]
		srcRank, dstRank := src.distr[i], dst.distr[i]
		switch {
		case rank == srcRank && rank == dstRank:
			if err := ctx.DataCopy(sh, dh); err != nil {
				return err
			}
		case rank == srcRank:
			if err := ctx.SendDetached(sh, dstRank, dh.Tag()); err != nil {
				return errors.Wrapf(err, "send tile %d", i)
			}
		case rank == dstRank:
			if err := ctx.RecvDetached(dh, srcRank, dh.Tag()); err != nil {
				return errors.Wrapf(err, "recv tile %d", i)
			}
		}
		ctx.CacheFlush(dh)
	}
	return nil
}

// Copy is CopyAsync followed by a wait for all tasks.
func Copy[T dtype.Float](src, dst *Tensor[T]) error {
	return runSync(dst.ctx, "tensor.Copy", func() error {
		return CopyAsync(src, dst)
	})
}
