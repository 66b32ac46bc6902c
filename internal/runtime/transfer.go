package runtime

import (
	"context"

	"github.com/pkg/errors"
)

// GetDataOnNode makes h's current data available on rank. Every rank calls it
// with the same arguments: the owner submits one send per destination until
// the handle is flushed, the destination submits one receive into its
// replica. Other ranks do nothing.
func (c *Context) GetDataOnNode(h *Handle, rank int) error {
	if err := c.checkTransfer(h, rank); err != nil {
		return err
	}
	if rank == h.owner {
		return nil
	}

	switch c.rank {
	case h.owner:
		h.mu.Lock()
		sent := h.sentTo[rank]
		h.sentTo[rank] = true
		h.mu.Unlock()
		if !sent {
			return c.SendDetached(h, rank, h.tag)
		}
	case rank:
		h.mu.Lock()
		valid := h.valid
		h.mu.Unlock()
		if !valid {
			return c.RecvDetached(h, h.owner, h.tag)
		}
	}
	return nil
}

// sendAddress is the mailbox a send lands in on the receiving rank.
type sendAddress struct {
	peer int
	tag  int64
}

// SendDetached submits a send of h's data to rank dst under tag. The send
// reads h after earlier writers, and starts only once earlier sends to the
// same (dst, tag) have been handed to the transport, so the receiver's
// ordered receives match submission order.
func (c *Context) SendDetached(h *Handle, dst int, tag int64) error {
	if err := c.checkTransfer(h, dst); err != nil {
		return err
	}
	t := c.newTask(kindComm, "send", nil)
	t.comm = func(ctx context.Context) error {
		buf, err := h.buffer(R)
		if err != nil {
			return err
		}
		return c.tr.Send(ctx, dst, tag, buf)
	}
	addr := sendAddress{peer: dst, tag: tag}
	t.address = &addr

	c.graphMu.Lock()
	prev := c.lastSend[addr]
	c.lastSend[addr] = t
	c.graphMu.Unlock()
	t.after = prev

	if err := c.submitInternal(t, h.As(R)); err != nil {
		c.graphMu.Lock()
		if c.lastSend[addr] == t {
			if prev != nil && !prev.finished {
				c.lastSend[addr] = prev
			} else {
				delete(c.lastSend, addr)
			}
		}
		c.graphMu.Unlock()
		return err
	}
	return nil
}

// RecvDetached submits a receive from rank src under tag into h (its data
// on the owner, its replica elsewhere).
func (c *Context) RecvDetached(h *Handle, src int, tag int64) error {
	if err := c.checkTransfer(h, src); err != nil {
		return err
	}
	if h.owner != c.rank {
		h.mu.Lock()
		h.valid = true
		h.mu.Unlock()
	}
	t := c.newTask(kindComm, "recv", nil)
	t.comm = func(ctx context.Context) error {
		payload, err := c.tr.Recv(ctx, src, tag)
		if err != nil {
			return err
		}
		if len(payload) != h.size {
			return errors.Errorf("received %d bytes for %s of size %d", len(payload), h, h.size)
		}
		buf, err := h.buffer(W)
		if err != nil {
			return err
		}
		copy(buf, payload)
		return nil
	}
	return c.submitInternal(t, h.As(W))
}

// CacheFlush forgets replica state for h: the owner will send again and
// other ranks will receive again on the next GetDataOnNode. Called after h
// is written.
func (c *Context) CacheFlush(h *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.owner == c.rank {
		clear(h.sentTo)
		return
	}
	h.valid = false
}

func (c *Context) checkTransfer(h *Handle, peer int) error {
	if h == nil {
		return errors.Wrap(ErrSubmission, "nil handle")
	}
	if h.tag < 0 {
		return errors.Wrapf(ErrSubmission, "%s has no transfer tag", h)
	}
	if peer < 0 || peer >= c.size {
		return errors.Wrapf(ErrSubmission, "rank %d not in [0, %d)", peer, c.size)
	}
	return nil
}

func (c *Context) runComm(t *task) {
	var err error
	if c.Err() == nil {
		if err = t.comm(c.base); err != nil {
			err = errors.Wrapf(ErrTransfer, "%s: %v", t.name, err)
		}
	}
	c.complete(t, err)
}
