package runtime

import "github.com/pkg/errors"

func copyBuffers(_ any, buffers [][]byte) error {
	copy(buffers[1], buffers[0])
	return nil
}

// buffers live in host memory for both worker kinds
var dataCopy = &Codelet{
	Name:      "tessera_data_copy",
	Footprint: func(args any) uint32 { return Footprint(args.(int)) },
	CPU:       []Func{copyBuffers},
	Accel:     []Func{copyBuffers},
}

// DataCopy submits a whole-buffer copy from src to dst on the local rank.
func (c *Context) DataCopy(src, dst *Handle) error {
	if src.size != dst.size {
		return errors.Wrapf(ErrSubmission, "copy %s (%d bytes) into %s (%d bytes)", src, src.size, dst, dst.size)
	}
	return c.Submit(dataCopy, src.size, src.As(R), dst.As(W))
}
