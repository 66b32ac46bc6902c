package codelets

import (
	"github.com/23skdu/longbow-tessera/internal/dtype"
	"github.com/23skdu/longbow-tessera/internal/kernel"
	"github.com/23skdu/longbow-tessera/internal/runtime"
)

type subcopyArgs struct {
	srcStart, srcStride []int
	dstStart, dstStride []int
	shape               []int
}

func subcopyCPU[T dtype.Float](args any, buffers [][]byte) error {
	a := args.(subcopyArgs)
	var index []int64
	if len(buffers) > 2 {
		index = dtype.Ints(buffers[2])
	} else {
		index = make([]int64, len(a.shape))
	}
	kernel.Subcopy(a.srcStart, a.srcStride, a.shape, dtype.FromBytes[T](buffers[0]),
		a.dstStart, a.dstStride, dtype.FromBytes[T](buffers[1]), index)
	return nil
}

func subcopyFootprint(args any) uint32 {
	a := args.(subcopyArgs)
	ints := make([]int, 0, 3*len(a.shape))
	ints = append(ints, a.shape...)
	ints = append(ints, a.srcStride...)
	ints = append(ints, a.dstStride...)
	return runtime.Footprint(ints...)
}

var Subcopy = Group{
	FP32: &runtime.Codelet{
		Name:      "tessera_subcopy_fp32",
		Footprint: subcopyFootprint,
		CPU:       []runtime.Func{subcopyCPU[float32]},
	},
	FP64: &runtime.Codelet{
		Name:      "tessera_subcopy_fp64",
		Footprint: subcopyFootprint,
		CPU:       []runtime.Func{subcopyCPU[float64]},
	},
}

// IndexScratchSize is the scratch size, in bytes, SubmitSubcopy expects for
// an ndim-dimensional copy.
func IndexScratchSize(ndim int) int {
	return 2 * ndim * 8
}

// SubmitSubcopy copies the block of the given shape at srcStart in src into
// dst at dstStart. dstMode is W when the block covers dst entirely and RW
// (or RWCommute) otherwise. scratch may be nil; when set it is a Scratch
// handle of at least IndexScratchSize(len(shape)) bytes.
func SubmitSubcopy[T dtype.Float](ctx *runtime.Context,
	srcStart, srcStride, shape []int, src *runtime.Handle,
	dstStart, dstStride []int, dst *runtime.Handle, dstMode runtime.AccessMode,
	scratch *runtime.Handle) error {

	args := subcopyArgs{
		srcStart:  append([]int(nil), srcStart...),
		srcStride: append([]int(nil), srcStride...),
		dstStart:  append([]int(nil), dstStart...),
		dstStride: append([]int(nil), dstStride...),
		shape:     append([]int(nil), shape...),
	}
	accesses := []runtime.Access{src.As(runtime.R), dst.As(dstMode)}
	if scratch != nil {
		accesses = append(accesses, scratch.As(runtime.Scratch))
	}
	return ctx.Submit(pick[T](Subcopy), args, accesses...)
}
