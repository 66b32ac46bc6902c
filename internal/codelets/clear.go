package codelets

import (
	"github.com/23skdu/longbow-tessera/internal/kernel"
	"github.com/23skdu/longbow-tessera/internal/runtime"
)

func clearBuffer(_ any, buffers [][]byte) error {
	kernel.Clear(buffers[0])
	return nil
}

var clearCodelet = &runtime.Codelet{
	Name:      "tessera_clear",
	Footprint: func(args any) uint32 { return runtime.Footprint(args.(int)) },
	CPU:       []runtime.Func{clearBuffer},
	Accel:     []runtime.Func{clearBuffer},
}

// Clear zeroes a whole buffer. It does not depend on the element kind.
var Clear = Group{FP32: clearCodelet, FP64: clearCodelet}

// SubmitClear zeroes h.
func SubmitClear(ctx *runtime.Context, h *runtime.Handle) error {
	return ctx.Submit(clearCodelet, h.Size(), h.As(runtime.W))
}
