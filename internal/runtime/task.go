package runtime

import (
	"context"
	"time"

	"github.com/23skdu/longbow-tessera/internal/device"
)

type taskKind int

const (
	kindCompute taskKind = iota // runs on a worker
	kindComm                    // runs on its own goroutine
	kindInline                  // runtime bookkeeping
	kindHold                    // acquire sentinel, completed by Release
)

type task struct {
	id       uint64
	kind     taskKind
	name     string
	cl       *Codelet
	args     any
	accesses []Access

	// scheduling, set at submission
	where     device.Where
	footprint uint32
	predicted time.Duration

	comm    func(ctx context.Context) error
	inline  func()
	granted chan struct{}

	// after is an ordering predecessor outside the handle graph. Sends
	// sharing a (peer, tag) address chain through it.
	after   *task
	address *sendAddress

	// guarded by ctx.graphMu
	deps     int
	succs    []*task
	finished bool

	counted bool
	done    chan struct{}
}

func (c *Context) newTask(kind taskKind, name string, cl *Codelet) *task {
	return &task{
		id:      c.nextTask.Add(1),
		kind:    kind,
		name:    name,
		cl:      cl,
		counted: kind != kindHold,
		done:    make(chan struct{}),
	}
}

func appendLive(dst []*task, src []*task) []*task {
	for _, t := range src {
		if !t.finished {
			dst = append(dst, t)
		}
	}
	return dst
}

// track updates the per-handle graph state for one access and returns the
// tasks the access must wait for. Caller holds graphMu.
func track(t *task, a Access) []*task {
	h := a.Handle
	h.writers = appendLive(h.writers[:0], h.writers)
	h.readers = appendLive(h.readers[:0], h.readers)
	h.scratchers = appendLive(h.scratchers[:0], h.scratchers)

	var deps []*task
	switch a.Mode {
	case R:
		deps = append(deps, h.writers...)
		h.readers = append(h.readers, t)
	case RWCommute:
		if h.commuteOpen && len(h.readers) == 0 {
			h.commuteBase = appendLive(h.commuteBase[:0], h.commuteBase)
			deps = append(deps, h.commuteBase...)
			h.writers = append(h.writers, t)
			break
		}
		base := append(append([]*task(nil), h.writers...), h.readers...)
		deps = base
		h.commuteBase = base
		h.commuteOpen = true
		h.writers = []*task{t}
		h.readers = nil
	case Scratch:
		h.scratchers = append(h.scratchers, t)
	default: // W, RW
		deps = append(append(deps, h.writers...), h.readers...)
		if t.kind == kindInline {
			// teardown also waits for scratch users
			deps = append(deps, h.scratchers...)
		}
		h.writers = []*task{t}
		h.readers = nil
		h.commuteOpen = false
		h.commuteBase = nil
	}
	return deps
}

// enqueue inserts t into the graph and dispatches it once its dependencies
// are satisfied.
func (c *Context) enqueue(t *task, accesses []Access) {
	t.accesses = accesses
	if t.counted {
		c.taskStarted()
	}

	c.graphMu.Lock()
	seen := make(map[*task]struct{})
	for _, a := range accesses {
		for _, d := range track(t, a) {
			if d == t || d.finished {
				continue
			}
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			d.succs = append(d.succs, t)
			t.deps++
		}
	}
	if d := t.after; d != nil && !d.finished {
		if _, ok := seen[d]; !ok {
			d.succs = append(d.succs, t)
			t.deps++
		}
	}
	t.after = nil
	ready := t.deps == 0
	c.graphMu.Unlock()

	if ready {
		c.dispatch(t)
	}
}

// pendingOn returns every unfinished task that touches h.
func (c *Context) pendingOn(h *Handle) []*task {
	c.graphMu.Lock()
	defer c.graphMu.Unlock()
	var out []*task
	out = appendLive(out, h.writers)
	out = appendLive(out, h.readers)
	out = appendLive(out, h.scratchers)
	return out
}

func (c *Context) complete(t *task, err error) {
	if err != nil {
		c.fail(err)
	}

	c.graphMu.Lock()
	t.finished = true
	if t.address != nil && c.lastSend[*t.address] == t {
		delete(c.lastSend, *t.address)
	}
	var ready []*task
	for _, s := range t.succs {
		s.deps--
		if s.deps == 0 {
			ready = append(ready, s)
		}
	}
	t.succs = nil
	c.graphMu.Unlock()

	close(t.done)
	for _, s := range ready {
		c.dispatch(s)
	}
	if t.counted {
		c.taskFinished()
	}
}

func (c *Context) dispatch(t *task) {
	switch t.kind {
	case kindCompute:
		c.schedule(t)
	case kindComm:
		go c.runComm(t)
	case kindInline:
		go func() {
			t.inline()
			c.complete(t, nil)
		}()
	case kindHold:
		close(t.granted)
	}
}
