package codelets

import (
	"github.com/23skdu/longbow-tessera/internal/dtype"
	"github.com/23skdu/longbow-tessera/internal/kernel"
	"github.com/23skdu/longbow-tessera/internal/runtime"
)

func conv2dCPU[T dtype.Float](args any, buffers [][]byte) error {
	kernel.Conv2DAccumulate(args.(kernel.Conv2DArgs), dtype.FromBytes[T](buffers[0]),
		dtype.FromBytes[T](buffers[1]), dtype.FromBytes[T](buffers[2]))
	return nil
}

func conv2dFootprint(args any) uint32 {
	a := args.(kernel.Conv2DArgs)
	return runtime.Footprint(a.Batch, a.SrcX, a.SrcY, a.KernelX, a.KernelY, a.DstX, a.DstY)
}

var Conv2D = Group{
	FP32: &runtime.Codelet{
		Name:      "tessera_conv2d_fp32",
		Footprint: conv2dFootprint,
		CPU:       []runtime.Func{conv2dCPU[float32]},
	},
	FP64: &runtime.Codelet{
		Name:      "tessera_conv2d_fp64",
		Footprint: conv2dFootprint,
		CPU:       []runtime.Func{conv2dCPU[float64]},
	},
}

// SubmitConv2D accumulates the src (*) kernel contribution into dst.
// Contributions to the same dst commute.
func SubmitConv2D[T dtype.Float](ctx *runtime.Context, args kernel.Conv2DArgs,
	src, kern, dst *runtime.Handle) error {

	return ctx.Submit(pick[T](Conv2D), args,
		src.As(runtime.R), kern.As(runtime.R), dst.As(runtime.RWCommute))
}
