package tensor

import (
	"github.com/pkg/errors"

	"github.com/23skdu/longbow-tessera/internal/dtype"
	"github.com/23skdu/longbow-tessera/internal/runtime"
	"github.com/23skdu/longbow-tessera/internal/tile"
)

// arrayHandle checks that a host array of the given shape maps onto t's
// only tile and returns that tile.
func arrayHandle[T dtype.Float](t *Tensor[T], shape []int) (*runtime.Handle, error) {
	if len(shape) != t.Ndim() {
		return nil, errors.Wrapf(ErrDimensionMismatch, "array has %d dimensions, tensor %d", len(shape), t.Ndim())
	}
	if !tile.EqualInts(shape, t.Shape()) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "array shape %v, tensor shape %v", shape, t.Shape())
	}
	if len(t.handles) != 1 {
		return nil, errors.Wrapf(ErrDimensionMismatch, "tensor has %d tiles", len(t.handles))
	}
	h := t.handles[0]
	if !h.IsLocal() {
		return nil, errors.Wrapf(runtime.ErrNotLocal, "tile owned by rank %d", h.Owner())
	}
	return h, nil
}

// FromArray fills a single-tile tensor from a column-major host array. It
// waits for prior tasks on the tile. Once the tensor has been read by other
// ranks, every rank must call FlushCache afterwards.
func FromArray[T dtype.Float](t *Tensor[T], data []T, shape []int) error {
	h, err := arrayHandle(t, shape)
	if err != nil {
		return err
	}
	if len(data) != t.Nelems() {
		return errors.Wrapf(ErrDimensionMismatch, "array holds %d elements, shape needs %d", len(data), t.Nelems())
	}
	ld, err := h.Acquire(runtime.W)
	if err != nil {
		return err
	}
	defer ld.Release()
	copy(runtime.Floats[T](ld), data)
	return nil
}

// ToArray returns a copy of a single-tile tensor as a column-major host
// array of the given shape.
func ToArray[T dtype.Float](t *Tensor[T], shape []int) ([]T, error) {
	h, err := arrayHandle(t, shape)
	if err != nil {
		return nil, err
	}
	ld, err := h.Acquire(runtime.R)
	if err != nil {
		return nil, err
	}
	defer ld.Release()
	return append([]T(nil), runtime.Floats[T](ld)...), nil
}
