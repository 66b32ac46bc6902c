// Package device describes the kinds of workers a runtime can schedule tasks
// onto and the per-worker backends that provide their local resources.
package device

import "strings"

// Kind identifies a class of worker. Kinds are single bits so that they can
// be combined into a Where mask.
type Kind uint32

const (
	// CPU workers run general-purpose implementations.
	CPU Kind = 1 << iota
	// Accel workers run accelerator implementations (BLAS-backed in this build).
	Accel
)

// Kinds lists every kind in scheduling preference order.
var Kinds = []Kind{CPU, Accel}

func (k Kind) String() string {
	switch k {
	case CPU:
		return "cpu"
	case Accel:
		return "accel"
	default:
		return "unknown"
	}
}

// Where is a bitmask of worker kinds allowed to execute an operation.
type Where uint32

const (
	WhereNone  Where = 0
	WhereCPU   Where = Where(CPU)
	WhereAccel Where = Where(Accel)
	WhereAny   Where = WhereCPU | WhereAccel
)

// Has reports whether kind k is enabled in w.
func (w Where) Has(k Kind) bool {
	return w&Where(k) != 0
}

// SubsetOf reports whether every kind in w is also enabled in other.
func (w Where) SubsetOf(other Where) bool {
	return w&other == w
}

func (w Where) String() string {
	if w == WhereNone {
		return "none"
	}
	var parts []string
	for _, k := range Kinds {
		if w.Has(k) {
			parts = append(parts, k.String())
		}
	}
	return strings.Join(parts, "|")
}

// Backend manages the local resources of one worker.
type Backend interface {
	Name() string
	Kind() Kind

	// GetScratch gets a zeroed buffer of n bytes from the pool or allocates one.
	GetScratch(n int) []byte

	// PutScratch returns a buffer to the pool.
	PutScratch(b []byte)

	// Synchronize blocks until all queued device work is complete.
	Synchronize()
}

// NewBackend creates the backend serving a worker of the given kind.
func NewBackend(kind Kind) Backend {
	if kind == Accel {
		return NewAccelBackend()
	}
	return NewCPUBackend()
}
