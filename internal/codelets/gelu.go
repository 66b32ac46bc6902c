package codelets

import (
	"github.com/23skdu/longbow-tessera/internal/dtype"
	"github.com/23skdu/longbow-tessera/internal/kernel"
	"github.com/23skdu/longbow-tessera/internal/runtime"
)

func geluCPU[T dtype.Float](_ any, buffers [][]byte) error {
	kernel.Gelu(dtype.FromBytes[T](buffers[0]))
	return nil
}

var Gelu = Group{
	FP32: &runtime.Codelet{
		Name:      "tessera_gelu_fp32",
		Footprint: func(args any) uint32 { return runtime.Footprint(args.(int)) },
		CPU:       []runtime.Func{geluCPU[float32]},
	},
	FP64: &runtime.Codelet{
		Name:      "tessera_gelu_fp64",
		Footprint: func(args any) uint32 { return runtime.Footprint(args.(int)) },
		CPU:       []runtime.Func{geluCPU[float64]},
	},
}

// SubmitGelu applies GeLU in place to every element of h.
func SubmitGelu[T dtype.Float](ctx *runtime.Context, h *runtime.Handle) error {
	return ctx.Submit(pick[T](Gelu), h.Size()/dtype.SizeOf[T](), h.As(runtime.RW))
}
