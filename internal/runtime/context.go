// Package runtime schedules tasks over registered data handles on a pool of
// heterogeneous workers, and moves handle data between ranks.
//
// A program creates one Context per rank. Every rank issues the same
// sequence of registrations and operations (SPMD); each rank submits the
// tasks it executes itself and the transfers it takes part in.
package runtime

import (
	"context"
	goruntime "runtime"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/23skdu/longbow-tessera/internal/device"
	"github.com/23skdu/longbow-tessera/internal/perfmodel"
	"github.com/23skdu/longbow-tessera/internal/transport"
)

var tracer = otel.Tracer("github.com/23skdu/longbow-tessera/internal/runtime")

// Context owns the task graph, workers and transport of one rank.
type Context struct {
	cfg    Config
	rank   int
	size   int
	tr     transport.Transport
	alloc  memory.Allocator
	model  *perfmodel.Model
	logger zerolog.Logger

	base   context.Context
	cancel context.CancelFunc

	workers   []*worker
	byKind    map[device.Kind][]*worker
	available device.Where
	wg        sync.WaitGroup

	whereMu sync.RWMutex
	where   map[*Codelet]device.Where

	graphMu    sync.Mutex
	lastSend   map[sendAddress]*task
	nextTask   atomic.Uint64
	nextHandle atomic.Uint64
	nextTag    atomic.Int64

	stateMu  sync.Mutex
	idle     *sync.Cond
	inflight int
	closed   bool
	err      error
}

// New starts the workers of a context.
func New(cfg Config) (*Context, error) {
	if cfg.NCPU < 0 {
		cfg.NCPU = goruntime.NumCPU()
	}
	if cfg.NAccel < 0 {
		cfg.NAccel = 0
	}
	if cfg.NCPU+cfg.NAccel == 0 {
		return nil, errors.New("runtime needs at least one worker")
	}
	if cfg.CalibrationSamples <= 0 {
		cfg.CalibrationSamples = 3
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.NewWorld(1).Endpoint(0)
	}
	if cfg.Allocator == nil {
		cfg.Allocator = memory.NewGoAllocator()
	}
	if cfg.NewBackend == nil {
		cfg.NewBackend = device.NewBackend
	}
	if cfg.Model == nil {
		cfg.Model = perfmodel.New(cfg.CalibrationSamples)
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	c := &Context{
		cfg:    cfg,
		rank:   cfg.Transport.Rank(),
		size:   cfg.Transport.Size(),
		tr:     cfg.Transport,
		alloc:  cfg.Allocator,
		model:  cfg.Model,
		byKind: make(map[device.Kind][]*worker),
		where:  make(map[*Codelet]device.Where),

		lastSend: make(map[sendAddress]*task),
	}
	c.logger = logger.With().Int("rank", c.rank).Logger()
	c.idle = sync.NewCond(&c.stateMu)
	c.base, c.cancel = context.WithCancel(context.Background())

	for i := 0; i < cfg.NCPU; i++ {
		c.addWorker(device.CPU)
	}
	for i := 0; i < cfg.NAccel; i++ {
		c.addWorker(device.Accel)
	}
	for _, w := range c.workers {
		c.wg.Add(1)
		go w.loop()
	}

	c.logger.Info().
		Int("size", c.size).
		Int("ncpu", cfg.NCPU).
		Int("naccel", cfg.NAccel).
		Stringer("where", c.available).
		Msg("Runtime started")
	return c, nil
}

func (c *Context) addWorker(kind device.Kind) {
	w := newWorker(c, len(c.workers), kind)
	c.workers = append(c.workers, w)
	c.byKind[kind] = append(c.byKind[kind], w)
	c.available |= device.Where(kind)
}

func (c *Context) Rank() int                   { return c.rank }
func (c *Context) Size() int                   { return c.size }
func (c *Context) Model() *perfmodel.Model     { return c.model }
func (c *Context) Logger() *zerolog.Logger     { return &c.logger }
func (c *Context) Allocator() memory.Allocator { return c.alloc }

// Base is the context transfers run under. It is cancelled by Close.
func (c *Context) Base() context.Context { return c.base }

// Workers returns the number of workers of kind.
func (c *Context) Workers(kind device.Kind) int { return len(c.byKind[kind]) }

// ReserveTags reserves n consecutive transfer tags and returns the first.
// Ranks reserving in the same order obtain the same tags.
func (c *Context) ReserveTags(n int) int64 {
	return c.nextTag.Add(int64(n)) - int64(n)
}

// Submit enqueues a task running cl over the given accesses. It returns as
// soon as the task is in the graph.
func (c *Context) Submit(cl *Codelet, args any, accesses ...Access) error {
	if cl == nil {
		return errors.Wrap(ErrSubmission, "nil codelet")
	}
	where := c.Where(cl)
	if where == device.WhereNone {
		return errors.Wrapf(ErrSubmission, "%s: no eligible worker", cl.Name)
	}

	t := c.newTask(kindCompute, cl.Name, cl)
	t.args = args
	t.where = where
	t.footprint = cl.footprint(args)
	if err := c.submitInternal(t, accesses...); err != nil {
		return errors.Wrapf(err, "submit %s", cl.Name)
	}
	tasksSubmitted.WithLabelValues(cl.Name).Inc()
	return nil
}

func (c *Context) submitInternal(t *task, accesses ...Access) error {
	c.stateMu.Lock()
	closed, failed := c.closed, c.err
	c.stateMu.Unlock()
	if closed {
		return errors.Wrap(ErrSubmission, "context closed")
	}
	if failed != nil {
		return errors.Wrapf(ErrSubmission, "aborted after earlier failure: %v", failed)
	}
	for _, a := range accesses {
		if a.Handle == nil {
			return errors.Wrap(ErrSubmission, "nil handle")
		}
		if !a.Mode.valid() {
			return errors.Wrapf(ErrSubmission, "invalid mode %d", a.Mode)
		}
		a.Handle.mu.Lock()
		dead := a.Handle.dead
		a.Handle.mu.Unlock()
		if dead {
			return errors.Wrapf(ErrSubmission, "%s: %v", a.Handle, ErrUnregistered)
		}
	}
	c.enqueue(t, accesses)
	return nil
}

func (c *Context) taskStarted() {
	c.stateMu.Lock()
	c.inflight++
	c.stateMu.Unlock()
}

func (c *Context) taskFinished() {
	c.stateMu.Lock()
	c.inflight--
	if c.inflight == 0 {
		c.idle.Broadcast()
	}
	c.stateMu.Unlock()
}

// fail records an asynchronous error. The first one is kept.
func (c *Context) fail(err error) {
	c.stateMu.Lock()
	first := c.err == nil
	if first {
		c.err = err
	}
	c.stateMu.Unlock()
	asyncErrors.Inc()
	if first {
		c.logger.Error().Err(err).Msg("Task failed")
	} else {
		c.logger.Debug().Err(err).Msg("Further task failure")
	}
}

// Err returns the first asynchronous error, if any.
func (c *Context) Err() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.err
}

// WaitForAll blocks until every submitted task has finished and returns the
// first asynchronous error recorded by the context.
func (c *Context) WaitForAll() error {
	_, span := tracer.Start(c.base, "runtime.WaitForAll")
	defer span.End()
	span.SetAttributes(attribute.Int("rank", c.rank))

	c.stateMu.Lock()
	for c.inflight > 0 {
		c.idle.Wait()
	}
	err := c.err
	c.stateMu.Unlock()
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Close waits for all tasks, stops the workers and refuses further
// submissions. The transport is left open.
func (c *Context) Close() error {
	err := c.WaitForAll()

	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return err
	}
	c.closed = true
	c.stateMu.Unlock()

	for _, w := range c.workers {
		w.stop()
	}
	c.wg.Wait()
	c.cancel()
	c.logger.Info().Msg("Runtime stopped")
	return err
}

func (c *Context) allocate(size int) []byte {
	bytesAllocated.Add(float64(size))
	return c.alloc.Allocate(size)
}

func (c *Context) free(b []byte) {
	bytesAllocated.Sub(float64(len(b)))
	c.alloc.Free(b)
}
