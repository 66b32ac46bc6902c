package tensor

import (
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/23skdu/longbow-tessera/internal/dtype"
	"github.com/23skdu/longbow-tessera/internal/runtime"
	"github.com/23skdu/longbow-tessera/internal/tile"
)

var tracer = otel.Tracer("github.com/23skdu/longbow-tessera/internal/tensor")

// Tensor is a tiled array whose tiles are owned by ranks according to a
// distribution. Every rank holds a Tensor value for the same logical tensor;
// tiles owned elsewhere are placeholders that receive replicas on demand.
type Tensor[T dtype.Float] struct {
	Traits
	ctx     *runtime.Context
	distr   []int
	handles []*runtime.Handle
}

// New creates a tensor. distr gives the owner rank of every tile in linear
// grid order. All ranks must create their tensors in the same order.
func New[T dtype.Float](ctx *runtime.Context, traits Traits, distr []int) (*Tensor[T], error) {
	ntiles := traits.grid.Nelems()
	if len(distr) != ntiles {
		return nil, errors.Wrapf(ErrInvalidDistribution,
			"%d owners for %d tiles", len(distr), ntiles)
	}
	for i, r := range distr {
		if r < 0 || r >= ctx.Size() {
			return nil, errors.Wrapf(ErrInvalidDistribution,
				"tile %d owned by rank %d, world size %d", i, r, ctx.Size())
		}
	}

	t := &Tensor[T]{
		Traits:  traits,
		ctx:     ctx,
		distr:   append([]int(nil), distr...),
		handles: make([]*runtime.Handle, ntiles),
	}
	base := ctx.ReserveTags(ntiles)
	for i := range t.handles {
		size := traits.TileTraits(i).Nelems() * dtype.SizeOf[T]()
		h, err := ctx.AllocateOn(distr[i], base+int64(i), size, runtime.RW)
		if err != nil {
			for _, prev := range t.handles[:i] {
				_ = prev.Unregister()
			}
			return nil, errors.Wrapf(err, "tile %d", i)
		}
		t.handles[i] = h
	}
	return t, nil
}

// NewOnRank creates a tensor whose tiles are all owned by rank.
func NewOnRank[T dtype.Float](ctx *runtime.Context, traits Traits, rank int) (*Tensor[T], error) {
	distr := make([]int, traits.grid.Nelems())
	for i := range distr {
		distr[i] = rank
	}
	return New[T](ctx, traits, distr)
}

func (t *Tensor[T]) Context() *runtime.Context        { return t.ctx }
func (t *Tensor[T]) TileHandle(i int) *runtime.Handle { return t.handles[i] }
func (t *Tensor[T]) TileRank(i int) int               { return t.distr[i] }
func (t *Tensor[T]) DType() dtype.DType               { return dtype.Of[T]() }

// Distribution returns the owner of every tile.
func (t *Tensor[T]) Distribution() []int {
	return append([]int(nil), t.distr...)
}

// TileIndex converts a linear tile offset into a grid coordinate.
func (t *Tensor[T]) TileIndex(i int) []int {
	return t.grid.LinearToIndex(i)
}

// FlushCache drops replica state of every tile after tiles were written
// outside of tensor operations, e.g. by FromArray. Every rank must call it.
func (t *Tensor[T]) FlushCache() {
	for _, h := range t.handles {
		t.ctx.CacheFlush(h)
	}
}

// Unregister tears down every tile handle.
func (t *Tensor[T]) Unregister() error {
	var first error
	for _, h := range t.handles {
		if err := h.Unregister(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// runSync runs an asynchronous operation and waits for the whole task graph.
func runSync(ctx *runtime.Context, name string, async func() error) error {
	_, span := tracer.Start(ctx.Base(), name,
		trace.WithAttributes(attribute.Int("rank", ctx.Rank()), attribute.Int("size", ctx.Size())))
	defer span.End()

	if err := async(); err != nil {
		span.RecordError(err)
		return err
	}
	if err := ctx.WaitForAll(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// matrixOf views a tile shape as an nx-by-ny column-major matrix split after
// the first axis.
func matrixOf(tr tile.Traits) (int, int) {
	if tr.Ndim() == 0 {
		return 1, 1
	}
	return tr.MatrixShape(1)
}
