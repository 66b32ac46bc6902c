package transport

import (
	"context"
	"sync"
)

type mailKey struct {
	src int
	tag int64
}

type slot struct {
	queue  [][]byte
	signal chan struct{}
}

// Mailbox buffers received payloads until they are claimed by Recv.
// It is thread-safe.
type Mailbox struct {
	mu     sync.Mutex
	slots  map[mailKey]*slot
	closed bool
	done   chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		slots: make(map[mailKey]*slot),
		done:  make(chan struct{}),
	}
}

func (m *Mailbox) slot(k mailKey) *slot {
	s, ok := m.slots[k]
	if !ok {
		s = &slot{}
		m.slots[k] = s
	}
	return s
}

// Deliver appends a payload. The mailbox takes ownership of payload.
func (m *Mailbox) Deliver(src int, tag int64, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	s := m.slot(mailKey{src, tag})
	s.queue = append(s.queue, payload)
	if s.signal != nil {
		close(s.signal)
		s.signal = nil
	}
	return nil
}

// Recv pops the oldest payload for (src, tag), waiting for one if needed.
func (m *Mailbox) Recv(ctx context.Context, src int, tag int64) ([]byte, error) {
	k := mailKey{src, tag}
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		s := m.slot(k)
		if len(s.queue) > 0 {
			payload := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			if len(s.queue) == 0 && s.signal == nil {
				delete(m.slots, k)
			}
			m.mu.Unlock()
			return payload, nil
		}
		if s.signal == nil {
			s.signal = make(chan struct{})
		}
		wait := s.signal
		m.mu.Unlock()

		select {
		case <-wait:
		case <-m.done:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Pending returns the number of undelivered payloads.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.slots {
		n += len(s.queue)
	}
	return n
}

// Close wakes every waiting Recv with ErrClosed.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.slots = nil
	close(m.done)
}
