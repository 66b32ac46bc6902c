package tensor

import (
	"github.com/pkg/errors"

	"github.com/23skdu/longbow-tessera/internal/codelets"
	"github.com/23skdu/longbow-tessera/internal/dtype"
)

// AddAsync computes dst = alpha*src + beta*dst. src and dst must share shape
// and base tile.
func AddAsync[T dtype.Float](alpha T, src *Tensor[T], beta T, dst *Tensor[T]) error {
	if err := checkSameTiling(src.Traits, dst.Traits); err != nil {
		return err
	}
	ctx := dst.ctx
	for i, dh := range dst.handles {
		owner := dst.distr[i]
		sh := src.handles[i]
		if err := ctx.GetDataOnNode(sh, owner); err != nil {
			return errors.Wrapf(err, "fetch src tile %d", i)
		}
		if ctx.Rank() == owner {
			nx, ny := matrixOf(dst.TileTraits(i))
			if err := codelets.SubmitAdd2D(ctx, nx, ny, alpha, sh, 0, nx, beta, dh, 0, nx); err != nil {
				return err
			}
		}
		ctx.CacheFlush(dh)
	}
	return nil
}

func Add[T dtype.Float](alpha T, src *Tensor[T], beta T, dst *Tensor[T]) error {
	return runSync(dst.ctx, "tensor.Add", func() error {
		return AddAsync(alpha, src, beta, dst)
	})
}
