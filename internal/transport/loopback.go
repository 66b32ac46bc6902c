package transport

import (
	"bytes"
	"context"
)

// World is a set of in-process ranks connected by mailboxes.
type World struct {
	boxes []*Mailbox
}

// NewWorld creates a world of size ranks.
func NewWorld(size int) *World {
	w := &World{boxes: make([]*Mailbox, size)}
	for i := range w.boxes {
		w.boxes[i] = NewMailbox()
	}
	return w
}

func (w *World) Size() int { return len(w.boxes) }

// Endpoint returns the transport seen by rank.
func (w *World) Endpoint(rank int) *Loopback {
	return &Loopback{world: w, rank: rank}
}

// Close shuts every mailbox.
func (w *World) Close() {
	for _, b := range w.boxes {
		b.Close()
	}
}

// Loopback is the Transport of one rank in a World.
type Loopback struct {
	world *World
	rank  int
}

var _ Transport = (*Loopback)(nil)

func (l *Loopback) Rank() int { return l.rank }
func (l *Loopback) Size() int { return len(l.world.boxes) }

func (l *Loopback) Send(ctx context.Context, dst int, tag int64, payload []byte) error {
	if err := checkRank(dst, l.Size()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.world.boxes[dst].Deliver(l.rank, tag, bytes.Clone(payload)); err != nil {
		return err
	}
	observeSend("loopback", len(payload))
	return nil
}

func (l *Loopback) Recv(ctx context.Context, src int, tag int64) ([]byte, error) {
	if err := checkRank(src, l.Size()); err != nil {
		return nil, err
	}
	payload, err := l.world.boxes[l.rank].Recv(ctx, src, tag)
	if err != nil {
		return nil, err
	}
	observeRecv("loopback", len(payload))
	return payload, nil
}

// Close shuts this rank's mailbox.
func (l *Loopback) Close() error {
	l.world.boxes[l.rank].Close()
	return nil
}
