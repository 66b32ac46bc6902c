package codelets

import (
	"github.com/23skdu/longbow-tessera/internal/dtype"
	"github.com/23skdu/longbow-tessera/internal/kernel"
	"github.com/23skdu/longbow-tessera/internal/runtime"
)

type add2dArgs[T dtype.Float] struct {
	nx, ny           int
	alpha, beta      T
	srcOffset, srcLd int
	dstOffset, dstLd int
}

func add2dCPU[T dtype.Float](args any, buffers [][]byte) error {
	a := args.(add2dArgs[T])
	src := dtype.FromBytes[T](buffers[0])[a.srcOffset:]
	dst := dtype.FromBytes[T](buffers[1])[a.dstOffset:]
	kernel.Add2D(a.nx, a.ny, a.alpha, src, a.srcLd, a.beta, dst, a.dstLd)
	return nil
}

func add2dBLAS[T dtype.Float](args any, buffers [][]byte) error {
	a := args.(add2dArgs[T])
	src := dtype.FromBytes[T](buffers[0])[a.srcOffset:]
	dst := dtype.FromBytes[T](buffers[1])[a.dstOffset:]
	kernel.Add2DBLAS(a.nx, a.ny, a.alpha, src, a.srcLd, a.beta, dst, a.dstLd)
	return nil
}

func add2dFootprint[T dtype.Float](args any) uint32 {
	a := args.(add2dArgs[T])
	return runtime.Footprint(a.nx, a.ny)
}

// Add2D computes dst = alpha*src + beta*dst over a strided 2-D region.
var Add2D = Group{
	FP32: &runtime.Codelet{
		Name:      "tessera_add2d_fp32",
		Footprint: add2dFootprint[float32],
		CPU:       []runtime.Func{add2dCPU[float32]},
		Accel:     []runtime.Func{add2dBLAS[float32]},
	},
	FP64: &runtime.Codelet{
		Name:      "tessera_add2d_fp64",
		Footprint: add2dFootprint[float64],
		CPU:       []runtime.Func{add2dCPU[float64]},
		Accel:     []runtime.Func{add2dBLAS[float64]},
	},
}

// SubmitAdd2D submits dst = alpha*src + beta*dst over an nx-by-ny region.
// Offsets are in elements from the start of each buffer, ld values are
// leading dimensions. Arguments are not validated.
func SubmitAdd2D[T dtype.Float](ctx *runtime.Context, nx, ny int, alpha T,
	src *runtime.Handle, srcOffset, srcLd int, beta T,
	dst *runtime.Handle, dstOffset, dstLd int) error {

	args := add2dArgs[T]{
		nx: nx, ny: ny,
		alpha: alpha, beta: beta,
		srcOffset: srcOffset, srcLd: srcLd,
		dstOffset: dstOffset, dstLd: dstLd,
	}
	return ctx.Submit(pick[T](Add2D), args, src.As(runtime.R), dst.As(runtime.RW))
}
