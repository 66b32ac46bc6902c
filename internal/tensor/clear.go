package tensor

import (
	"github.com/23skdu/longbow-tessera/internal/codelets"
	"github.com/23skdu/longbow-tessera/internal/dtype"
)

// ClearAsync zeroes every tile of t.
func ClearAsync[T dtype.Float](t *Tensor[T]) error {
	ctx := t.ctx
	for i, h := range t.handles {
		if t.distr[i] == ctx.Rank() {
			if err := codelets.SubmitClear(ctx, h); err != nil {
				return err
			}
		}
		ctx.CacheFlush(h)
	}
	return nil
}

func Clear[T dtype.Float](t *Tensor[T]) error {
	return runSync(t.ctx, "tensor.Clear", func() error { return ClearAsync(t) })
}

// GeluAsync applies GeLU in place to every element of t.
func GeluAsync[T dtype.Float](t *Tensor[T]) error {
	ctx := t.ctx
	for i, h := range t.handles {
		if t.distr[i] == ctx.Rank() {
			if err := codelets.SubmitGelu[T](ctx, h); err != nil {
				return err
			}
		}
		ctx.CacheFlush(h)
	}
	return nil
}

func Gelu[T dtype.Float](t *Tensor[T]) error {
	return runSync(t.ctx, "tensor.Gelu", func() error { return GeluAsync(t) })
}
