package device

import (
	"sync"
)

// ensure interface compliance
var _ Backend = (*CPUBackend)(nil)

// CPUBackend serves general-purpose workers. Scratch buffers live in host
// memory and are recycled through a sync.Pool.
type CPUBackend struct {
	pool scratchPool
}

func NewCPUBackend() *CPUBackend {
	return &CPUBackend{pool: newScratchPool("cpu")}
}

func (b *CPUBackend) Name() string {
	return "CPU"
}

func (b *CPUBackend) Kind() Kind {
	return CPU
}

func (b *CPUBackend) GetScratch(n int) []byte {
	return b.pool.get(n)
}

func (b *CPUBackend) PutScratch(buf []byte) {
	b.pool.put(buf)
}

func (b *CPUBackend) Synchronize() {
	// CPU is always synchronous
}

// scratchPool hands out zeroed byte buffers, reusing capacity where possible.
type scratchPool struct {
	label string
	pool  *sync.Pool
}

func newScratchPool(label string) scratchPool {
	return scratchPool{
		label: label,
		pool: &sync.Pool{
			New: func() interface{} {
				return new([]byte)
			},
		},
	}
}

func (p scratchPool) get(n int) []byte {
	v := p.pool.Get()
	bp, ok := v.(*[]byte)
	if !ok || bp == nil {
		bp = new([]byte)
	}
	if cap(*bp) < n {
		scratchMisses.WithLabelValues(p.label).Inc()
		return make([]byte, n)
	}
	scratchHits.WithLabelValues(p.label).Inc()
	buf := (*bp)[:n]
	// Zero-initialize
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

func (p scratchPool) put(buf []byte) {
	if buf == nil {
		return
	}
	p.pool.Put(&buf)
}
