package codelets

import (
	"github.com/23skdu/longbow-tessera/internal/dtype"
	"github.com/23skdu/longbow-tessera/internal/kernel"
	"github.com/23skdu/longbow-tessera/internal/runtime"
)

type gemmArgs[T dtype.Float] struct {
	g           kernel.GemmArgs
	alpha, beta T
}

func gemmCPU[T dtype.Float](args any, buffers [][]byte) error {
	a := args.(gemmArgs[T])
	kernel.Gemm(a.g, a.alpha, dtype.FromBytes[T](buffers[0]), dtype.FromBytes[T](buffers[1]),
		a.beta, dtype.FromBytes[T](buffers[2]))
	return nil
}

func gemmBLAS[T dtype.Float](args any, buffers [][]byte) error {
	a := args.(gemmArgs[T])
	kernel.GemmBLAS(a.g, a.alpha, dtype.FromBytes[T](buffers[0]), dtype.FromBytes[T](buffers[1]),
		a.beta, dtype.FromBytes[T](buffers[2]))
	return nil
}

func gemmFootprint[T dtype.Float](args any) uint32 {
	g := args.(gemmArgs[T]).g
	return runtime.Footprint(boolInt(g.TransA), boolInt(g.TransB), g.M, g.N, g.K)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var Gemm = Group{
	FP32: &runtime.Codelet{
		Name:      "tessera_gemm_fp32",
		Footprint: gemmFootprint[float32],
		CPU:       []runtime.Func{gemmCPU[float32]},
		Accel:     []runtime.Func{gemmBLAS[float32]},
	},
	FP64: &runtime.Codelet{
		Name:      "tessera_gemm_fp64",
		Footprint: gemmFootprint[float64],
		CPU:       []runtime.Func{gemmCPU[float64]},
		Accel:     []runtime.Func{gemmBLAS[float64]},
	},
}

// SubmitGemm submits C = alpha*op(A)*op(B) + beta*C on contiguous tiles.
// cMode is the access used for C: W when beta is zero, RW or RWCommute
// otherwise.
func SubmitGemm[T dtype.Float](ctx *runtime.Context, g kernel.GemmArgs, alpha T,
	a, b *runtime.Handle, beta T, c *runtime.Handle, cMode runtime.AccessMode) error {

	return ctx.Submit(pick[T](Gemm), gemmArgs[T]{g: g, alpha: alpha, beta: beta},
		a.As(runtime.R), b.As(runtime.R), c.As(cMode))
}
