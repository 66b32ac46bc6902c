// Package transport moves tile payloads between ranks. A payload is addressed
// by (source rank, tag); messages with the same address are delivered in the
// order they were sent.
package transport

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrClosed      = errors.New("transport closed")
	ErrInvalidRank = errors.New("invalid rank")
	ErrBreakerOpen = errors.New("circuit breaker open")
)

// Transport is the point-to-point channel used by a runtime context.
type Transport interface {
	Rank() int
	Size() int
	// Send delivers a copy of payload to rank dst under tag. It does not wait
	// for a matching Recv.
	Send(ctx context.Context, dst int, tag int64, payload []byte) error
	// Recv blocks until a payload from src with the given tag is available.
	Recv(ctx context.Context, src int, tag int64) ([]byte, error)
	Close() error
}

func checkRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return errors.Wrapf(ErrInvalidRank, "rank %d not in [0, %d)", rank, size)
	}
	return nil
}
