package runtime

import (
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/23skdu/longbow-tessera/internal/dtype"
)

// Teardown selects what Unregister does once the last owner drops a handle.
// It is fixed at registration from the registration mode.
type Teardown int

const (
	// TeardownWriteBack waits for every task touching the handle, then
	// releases it. Used for handles registered W, RW or RWCommute.
	TeardownWriteBack Teardown = iota
	// TeardownNoCoherency waits like WriteBack but the handle was read-only,
	// so nothing is considered modified. Used for handles registered R.
	TeardownNoCoherency
	// TeardownDeferred enqueues the release behind pending tasks and returns
	// immediately. Used for scratch handles.
	TeardownDeferred
)

func (td Teardown) String() string {
	switch td {
	case TeardownWriteBack:
		return "write-back"
	case TeardownNoCoherency:
		return "no-coherency"
	case TeardownDeferred:
		return "deferred"
	}
	return "unknown"
}

func teardownFor(mode AccessMode) Teardown {
	switch mode {
	case R:
		return TeardownNoCoherency
	case Scratch:
		return TeardownDeferred
	}
	return TeardownWriteBack
}

// Handle is the runtime's reference to one registered buffer. The rank that
// owns a handle holds its authoritative data; other ranks may hold a
// read-only replica received through GetDataOnNode.
type Handle struct {
	ctx      *Context
	id       uint64
	size     int
	owner    int
	tag      int64
	teardown Teardown

	mu       sync.Mutex
	data     []byte
	alloced  bool // data came from the context allocator
	valid    bool // replica holds the owner's current data
	sentTo   map[int]bool
	refs     int
	dead     bool
	acquired bool

	// task graph state, guarded by ctx.graphMu
	writers     []*task
	readers     []*task
	scratchers  []*task
	commuteOpen bool
	commuteBase []*task

	// serialises running RWCommute tasks
	execMu sync.Mutex
}

func (h *Handle) ID() uint64         { return h.id }
func (h *Handle) Size() int          { return h.size }
func (h *Handle) Owner() int         { return h.owner }
func (h *Handle) Tag() int64         { return h.tag }
func (h *Handle) Teardown() Teardown { return h.teardown }
func (h *Handle) Context() *Context  { return h.ctx }
func (h *Handle) IsLocal() bool      { return h.owner == h.ctx.rank }

func (h *Handle) String() string {
	return "handle#" + strconv.FormatUint(h.id, 10)
}

// Register wraps user memory in a handle owned by the local rank. The caller
// must not touch buf outside Acquire/Release until the handle is unregistered.
func (c *Context) Register(buf []byte, mode AccessMode) (*Handle, error) {
	if len(buf) == 0 {
		return nil, errors.Wrap(ErrZeroSize, "register")
	}
	if !mode.valid() {
		return nil, errors.Wrapf(ErrSubmission, "register with mode %d", mode)
	}
	h := c.newHandle(len(buf), c.rank, -1, mode)
	h.data = buf
	return h, nil
}

// RegisterSlice registers a typed slice.
func RegisterSlice[T dtype.Float](c *Context, s []T, mode AccessMode) (*Handle, error) {
	return c.Register(dtype.ToBytes(s), mode)
}

// Allocate registers size bytes of runtime-allocated memory owned by the
// local rank. Scratch handles get no storage of their own.
func (c *Context) Allocate(size int, mode AccessMode) (*Handle, error) {
	return c.AllocateOn(c.rank, -1, size, mode)
}

// AllocateOn registers a handle owned by rank owner with transfer tag tag.
// Storage is allocated only when owner is the local rank; elsewhere the
// handle is a placeholder whose replica is allocated on first receive.
func (c *Context) AllocateOn(owner int, tag int64, size int, mode AccessMode) (*Handle, error) {
	if size <= 0 {
		return nil, errors.Wrap(ErrZeroSize, "allocate")
	}
	if !mode.valid() {
		return nil, errors.Wrapf(ErrSubmission, "allocate with mode %d", mode)
	}
	if owner < 0 || owner >= c.size {
		return nil, errors.Wrapf(ErrSubmission, "owner %d not in [0, %d)", owner, c.size)
	}
	h := c.newHandle(size, owner, tag, mode)
	if owner == c.rank && mode != Scratch {
		h.data = c.allocate(size)
		h.alloced = true
	}
	return h, nil
}

func (c *Context) newHandle(size, owner int, tag int64, mode AccessMode) *Handle {
	handlesRegistered.Inc()
	return &Handle{
		ctx:      c,
		id:       c.nextHandle.Add(1),
		size:     size,
		owner:    owner,
		tag:      tag,
		teardown: teardownFor(mode),
		sentTo:   make(map[int]bool),
		refs:     1,
	}
}

// Ref adds a shared owner.
func (h *Handle) Ref() *Handle {
	h.mu.Lock()
	h.refs++
	h.mu.Unlock()
	return h
}

// Unregister drops one owner. The last drop tears the handle down according
// to its teardown policy.
func (h *Handle) Unregister() error {
	h.mu.Lock()
	if h.dead {
		h.mu.Unlock()
		return errors.Wrapf(ErrUnregistered, "%s", h)
	}
	if h.acquired {
		h.mu.Unlock()
		return errors.Wrapf(ErrAlreadyAcquired, "unregister %s", h)
	}
	h.refs--
	if h.refs > 0 {
		h.mu.Unlock()
		return nil
	}
	h.dead = true
	h.mu.Unlock()

	c := h.ctx
	switch h.teardown {
	case TeardownDeferred:
		t := c.newTask(kindInline, "teardown", nil)
		t.inline = h.release
		c.enqueue(t, []Access{h.As(W)})
	default:
		for _, t := range c.pendingOn(h) {
			<-t.done
		}
		h.release()
	}
	c.logger.Debug().Uint64("handle", h.id).Stringer("teardown", h.teardown).Msg("Unregistered handle")
	return nil
}

func (h *Handle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.alloced && h.data != nil {
		h.ctx.free(h.data)
	}
	h.data = nil
	h.alloced = false
	h.valid = false
	handlesRegistered.Dec()
}

// buffer returns the storage a task sees for mode.
func (h *Handle) buffer(mode AccessMode) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.owner == h.ctx.rank {
		if h.data == nil {
			return nil, errors.Wrapf(ErrUnregistered, "%s", h)
		}
		return h.data, nil
	}
	if h.data == nil {
		if mode == R {
			return nil, errors.Wrapf(ErrNotLocal, "%s owned by rank %d", h, h.owner)
		}
		h.allocReplica()
	}
	return h.data, nil
}

// allocReplica must be called with h.mu held.
func (h *Handle) allocReplica() {
	h.data = h.ctx.allocate(h.size)
	h.alloced = true
}

// LocalData is the host view of an acquired handle.
type LocalData struct {
	h    *Handle
	t    *task
	data []byte
	once sync.Once
}

// Bytes returns the handle's storage. It is valid until Release.
func (ld *LocalData) Bytes() []byte { return ld.data }

// Release ends the acquire and unblocks tasks waiting on the handle.
func (ld *LocalData) Release() {
	ld.once.Do(func() {
		ld.h.mu.Lock()
		ld.h.acquired = false
		ld.h.mu.Unlock()
		ld.h.ctx.complete(ld.t, nil)
	})
}

// Floats views acquired data as a typed slice.
func Floats[T dtype.Float](ld *LocalData) []T {
	return dtype.FromBytes[T](ld.data)
}

// Acquire blocks until every earlier conflicting task has finished and
// returns host access to the data. Tasks submitted afterwards that conflict
// with mode wait for Release.
func (h *Handle) Acquire(mode AccessMode) (*LocalData, error) {
	if mode != R && mode != W && mode != RW {
		return nil, errors.Wrapf(ErrSubmission, "acquire %s with mode %s", h, mode)
	}
	h.mu.Lock()
	if h.dead {
		h.mu.Unlock()
		return nil, errors.Wrapf(ErrUnregistered, "%s", h)
	}
	if h.acquired {
		h.mu.Unlock()
		return nil, errors.Wrapf(ErrAlreadyAcquired, "%s", h)
	}
	h.acquired = true
	h.mu.Unlock()

	c := h.ctx
	t := c.newTask(kindHold, "acquire", nil)
	t.granted = make(chan struct{})
	c.enqueue(t, []Access{h.As(mode)})
	<-t.granted

	h.mu.Lock()
	if h.owner != c.rank && (!h.valid || h.data == nil) {
		h.acquired = false
		h.mu.Unlock()
		c.complete(t, nil)
		return nil, errors.Wrapf(ErrNotLocal, "%s owned by rank %d", h, h.owner)
	}
	data := h.data
	h.mu.Unlock()

	return &LocalData{h: h, t: t, data: data}, nil
}
