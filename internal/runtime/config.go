package runtime

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"

	"github.com/23skdu/longbow-tessera/internal/device"
	"github.com/23skdu/longbow-tessera/internal/perfmodel"
	"github.com/23skdu/longbow-tessera/internal/transport"
)

// Config controls a Context.
type Config struct {
	// NCPU and NAccel are the number of workers per kind. A negative NCPU
	// selects one worker per logical CPU.
	NCPU   int
	NAccel int

	// CalibrationSamples is the number of runs after which a (codelet,
	// footprint, kind) bucket is used for predictions.
	CalibrationSamples int

	// Transport connects this rank to its peers. Nil means a single rank.
	Transport transport.Transport

	// Allocator backs runtime-allocated handles and replicas.
	Allocator memory.Allocator

	// Model is shared between contexts when set.
	Model *perfmodel.Model

	// NewBackend creates the backend of each worker. Nil means
	// device.NewBackend.
	NewBackend func(kind device.Kind) device.Backend

	Logger *zerolog.Logger
}

// DefaultConfig returns a single-rank configuration with one CPU worker per
// logical CPU and one accelerator worker.
func DefaultConfig() Config {
	return Config{
		NCPU:               -1,
		NAccel:             1,
		CalibrationSamples: 3,
	}
}
