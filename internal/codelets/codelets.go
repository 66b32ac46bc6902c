// Package codelets declares the operation descriptors of every leaf kernel
// and the typed functions submitting them.
package codelets

import (
	"github.com/23skdu/longbow-tessera/internal/device"
	"github.com/23skdu/longbow-tessera/internal/dtype"
	"github.com/23skdu/longbow-tessera/internal/runtime"
)

// Group is a codelet family with one descriptor per element kind.
type Group struct {
	FP32 *runtime.Codelet
	FP64 *runtime.Codelet
}

func (g Group) codelets() []*runtime.Codelet {
	if g.FP32 == g.FP64 {
		return []*runtime.Codelet{g.FP32}
	}
	return []*runtime.Codelet{g.FP32, g.FP64}
}

// RestrictWhere restricts every descriptor of the family. Either all of them
// are restricted or none.
func (g Group) RestrictWhere(ctx *runtime.Context, where device.Where) error {
	done := make([]*runtime.Codelet, 0, 2)
	for _, cl := range g.codelets() {
		if err := ctx.RestrictWhere(cl, where); err != nil {
			for _, d := range done {
				ctx.RestoreWhere(d)
			}
			return err
		}
		done = append(done, cl)
	}
	return nil
}

// RestoreWhere undoes RestrictWhere for the family.
func (g Group) RestoreWhere(ctx *runtime.Context) {
	for _, cl := range g.codelets() {
		ctx.RestoreWhere(cl)
	}
}

func pick[T dtype.Float](g Group) *runtime.Codelet {
	if dtype.Of[T]() == dtype.Float32 {
		return g.FP32
	}
	return g.FP64
}

// Groups lists every codelet family, for bulk restriction.
func Groups() []Group {
	return []Group{Add2D, Subcopy, Clear, Gelu, Gemm, Conv2D}
}
