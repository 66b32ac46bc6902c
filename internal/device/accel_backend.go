package device

var _ Backend = (*AccelBackend)(nil)

// AccelBackend serves accelerator workers. Accelerator implementations in
// this build run through the registered BLAS implementation (pure Go gonum by
// default, system BLAS through netlib when built with cgo), operating on the
// same host buffers as CPU workers.
type AccelBackend struct {
	pool scratchPool
}

func NewAccelBackend() *AccelBackend {
	return &AccelBackend{pool: newScratchPool("accel")}
}

func (b *AccelBackend) Name() string {
	return "BLAS(" + blasName() + ")"
}

func (b *AccelBackend) Kind() Kind {
	return Accel
}

func (b *AccelBackend) GetScratch(n int) []byte {
	return b.pool.get(n)
}

func (b *AccelBackend) PutScratch(buf []byte) {
	b.pool.put(buf)
}

func (b *AccelBackend) Synchronize() {
	// BLAS calls return once complete
}

// netlibEnabled is set when the cgo build registers system BLAS.
var netlibEnabled bool

func blasName() string {
	if netlibEnabled {
		return "netlib"
	}
	return "gonum"
}
