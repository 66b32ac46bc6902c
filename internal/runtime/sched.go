package runtime

import (
	"time"

	"github.com/23skdu/longbow-tessera/internal/device"
	"github.com/23skdu/longbow-tessera/internal/perfmodel"
)

// schedule picks a worker for a ready compute task, history-driven: a worker
// kind whose model bucket is not calibrated yet is explored first, otherwise
// the worker with the earliest expected completion wins.
func (c *Context) schedule(t *task) {
	key := perfmodel.Key{Symbol: t.cl.Name, Footprint: t.footprint}

	for _, kind := range device.Kinds {
		if !t.where.Has(kind) {
			continue
		}
		key.Kind = kind
		if _, ok := c.model.Predict(key); !ok {
			w := leastLoaded(c.byKind[kind])
			c.logger.Debug().Str("codelet", t.cl.Name).Stringer("kind", kind).
				Int("worker", w.id).Msg("Calibrating")
			t.predicted = 0
			w.push(t)
			return
		}
	}

	var best *worker
	var bestEnd time.Duration
	for _, kind := range device.Kinds {
		if !t.where.Has(kind) {
			continue
		}
		key.Kind = kind
		predicted, _ := c.model.Predict(key)
		for _, w := range c.byKind[kind] {
			end := w.expectedLoad() + predicted
			if best == nil || end < bestEnd {
				best, bestEnd = w, end
				t.predicted = predicted
			}
		}
	}
	best.push(t)
}

func leastLoaded(ws []*worker) *worker {
	best := ws[0]
	n := best.pending()
	for _, w := range ws[1:] {
		if p := w.pending(); p < n {
			best, n = w, p
		}
	}
	return best
}
