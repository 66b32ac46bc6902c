package runtime

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/23skdu/longbow-tessera/internal/device"
	"github.com/23skdu/longbow-tessera/internal/perfmodel"
)

// worker executes compute tasks pushed to its queue by the scheduler.
type worker struct {
	id      int
	kind    device.Kind
	backend device.Backend
	ctx     *Context

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*task
	running int
	load    time.Duration // predicted work queued or running
	stopped bool
}

func newWorker(c *Context, id int, kind device.Kind) *worker {
	w := &worker{
		id:      id,
		kind:    kind,
		backend: c.cfg.NewBackend(kind),
		ctx:     c,
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *worker) push(t *task) {
	w.mu.Lock()
	w.queue = append(w.queue, t)
	w.load += t.predicted
	w.mu.Unlock()
	w.cond.Signal()
	readyQueueDepth.Inc()
}

// pending returns the number of queued and running tasks.
func (w *worker) pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue) + w.running
}

func (w *worker) expectedLoad() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.load
}

func (w *worker) stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.cond.Broadcast()
}

func (w *worker) loop() {
	defer w.ctx.wg.Done()
	log := w.ctx.logger.With().Int("worker", w.id).Stringer("kind", w.kind).Logger()
	log.Debug().Str("backend", w.backend.Name()).Msg("Worker started")

	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.stopped {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			log.Debug().Msg("Worker stopped")
			return
		}
		t := w.queue[0]
		w.queue[0] = nil
		w.queue = w.queue[1:]
		w.running++
		w.mu.Unlock()
		readyQueueDepth.Dec()

		err := w.execute(t)

		w.mu.Lock()
		w.running--
		w.load -= t.predicted
		if w.load < 0 || (len(w.queue) == 0 && w.running == 0) {
			w.load = 0
		}
		w.mu.Unlock()

		w.ctx.complete(t, err)
	}
}

func (w *worker) execute(t *task) (err error) {
	c := w.ctx
	if c.Err() != nil {
		// the run is aborted; drain without executing
		return nil
	}

	impl := t.cl.impl(w.kind)
	if impl == nil {
		return errors.Wrapf(ErrSubmission, "%s has no %s implementation", t.cl.Name, w.kind)
	}

	buffers := make([][]byte, len(t.accesses))
	var commute []*Handle
	for i, a := range t.accesses {
		if a.Mode == Scratch {
			buf := w.backend.GetScratch(a.Handle.size)
			defer w.backend.PutScratch(buf)
			buffers[i] = buf
			continue
		}
		buf, err := a.Handle.buffer(a.Mode)
		if err != nil {
			return errors.Wrapf(err, "task %s", t.cl.Name)
		}
		buffers[i] = buf
		if a.Mode == RWCommute {
			commute = append(commute, a.Handle)
		}
	}

	// lock commute handles in id order
	sort.Slice(commute, func(i, j int) bool { return commute[i].id < commute[j].id })
	for i, h := range commute {
		if i > 0 && commute[i-1] == h {
			continue
		}
		h.execMu.Lock()
		defer h.execMu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("task %s panicked on %s worker %d: %v", t.cl.Name, w.kind, w.id, r)
		}
	}()

	start := time.Now()
	if err := impl(t.args, buffers); err != nil {
		return errors.Wrapf(err, "task %s", t.cl.Name)
	}
	w.backend.Synchronize()
	elapsed := time.Since(start)

	c.model.Record(perfmodel.Key{Symbol: t.cl.Name, Footprint: t.footprint, Kind: w.kind}, elapsed)
	tasksExecuted.WithLabelValues(t.cl.Name, w.kind.String()).Inc()
	taskDuration.WithLabelValues(t.cl.Name, w.kind.String()).Observe(elapsed.Seconds())
	return nil
}
