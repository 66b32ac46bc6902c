package tensor

import (
	"github.com/pkg/errors"

	"github.com/23skdu/longbow-tessera/internal/codelets"
	"github.com/23skdu/longbow-tessera/internal/dtype"
	"github.com/23skdu/longbow-tessera/internal/kernel"
	"github.com/23skdu/longbow-tessera/internal/runtime"
)

// Op selects whether a gemm operand is used as stored or transposed.
type Op bool

const (
	NoTrans Op = false
	Trans   Op = true
)

// opAxes returns the (row, col) axes of op(x) for a 2-D tensor.
func opAxes(op Op) (int, int) {
	if op == Trans {
		return 1, 0
	}
	return 0, 1
}

func checkAxis(what string, a Traits, i int, b Traits, j int) error {
	if a.Dim(i) != b.Dim(j) || a.basetile[i] != b.basetile[j] {
		return errors.Wrapf(ErrDimensionMismatch, "%s: %d/%d vs %d/%d",
			what, a.Dim(i), a.basetile[i], b.Dim(j), b.basetile[j])
	}
	return nil
}

func checkGemm(transA Op, a Traits, transB Op, b Traits, c Traits) error {
	if a.Ndim() != 2 || b.Ndim() != 2 || c.Ndim() != 2 {
		return errors.Wrapf(ErrDimensionMismatch, "gemm needs matrices, got %d, %d and %d dimensions",
			a.Ndim(), b.Ndim(), c.Ndim())
	}
	aRow, aCol := opAxes(transA)
	bRow, bCol := opAxes(transB)
	if err := checkAxis("rows of op(A) and C", a, aRow, c, 0); err != nil {
		return err
	}
	if err := checkAxis("columns of op(B) and C", b, bCol, c, 1); err != nil {
		return err
	}
	return checkAxis("inner dimension", a, aCol, b, bRow)
}

// GemmAsync computes C = alpha*op(A)*op(B) + beta*C over 2-D tiled tensors.
// Every C tile is computed by its owner; contributions along the inner
// dimension after the first commute with each other.
func GemmAsync[T dtype.Float](alpha T, transA Op, a *Tensor[T], transB Op, b *Tensor[T], beta T, c *Tensor[T]) error {
	if err := checkGemm(transA, a.Traits, transB, b.Traits, c.Traits); err != nil {
		return err
	}
	ctx := c.ctx
	aRow, _ := opAxes(transA)
	_, bCol := opAxes(transB)
	ktiles := a.grid.Dim(1 - aRow)

	for ci := range c.handles {
		cIndex := c.grid.LinearToIndex(ci)
		owner := c.distr[ci]
		ch := c.handles[ci]
		cShape := c.TileShape(cIndex)

		for l := 0; l < ktiles; l++ {
			aIndex := make([]int, 2)
			aIndex[aRow], aIndex[1-aRow] = cIndex[0], l
			bIndex := make([]int, 2)
			bIndex[bCol], bIndex[1-bCol] = cIndex[1], l
			ai := a.grid.IndexToLinear(aIndex)
			bi := b.grid.IndexToLinear(bIndex)

			if err := ctx.GetDataOnNode(a.handles[ai], owner); err != nil {
				return errors.Wrapf(err, "fetch A tile %d", ai)
			}
			if err := ctx.GetDataOnNode(b.handles[bi], owner); err != nil {
				return errors.Wrapf(err, "fetch B tile %d", bi)
			}
			if ctx.Rank() != owner {
				continue
			}

			aShape := a.TileShape(aIndex)
			bShape := b.TileShape(bIndex)
			g := kernel.GemmArgs{
				TransA: bool(transA),
				TransB: bool(transB),
				M:      cShape[0],
				N:      cShape[1],
				K:      aShape[1-aRow],
				LDA:    aShape[0],
				LDB:    bShape[0],
				LDC:    cShape[0],
			}
			tileBeta, mode := beta, runtime.RW
			switch {
			case l > 0:
				tileBeta, mode = 1, runtime.RWCommute
			case beta == 0:
				mode = runtime.W
			}
			err := codelets.SubmitGemm(ctx, g, alpha, a.handles[ai], b.handles[bi], tileBeta, ch, mode)
			if err != nil {
				return err
			}
		}
		ctx.CacheFlush(ch)
	}
	return nil
}

func Gemm[T dtype.Float](alpha T, transA Op, a *Tensor[T], transB Op, b *Tensor[T], beta T, c *Tensor[T]) error {
	return runSync(c.ctx, "tensor.Gemm", func() error {
		return GemmAsync(alpha, transA, a, transB, b, beta, c)
	})
}
