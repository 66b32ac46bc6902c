package runtime

import (
	"github.com/pkg/errors"

	"github.com/23skdu/longbow-tessera/internal/device"
)

// Func is one implementation of a codelet. buffers follow the order of the
// accesses given at submission.
type Func func(args any, buffers [][]byte) error

// Codelet describes an operation and the implementations available for each
// worker kind. Codelets are declared once as package values and never
// mutated; per-context eligibility is kept by the Context.
type Codelet struct {
	Name string
	// Footprint hashes the shape-related fields of args. It keys the
	// performance model and nothing else.
	Footprint func(args any) uint32
	CPU       []Func
	Accel     []Func
}

// DefaultWhere returns exactly the worker kinds that have an implementation.
func (cl *Codelet) DefaultWhere() device.Where {
	var w device.Where
	if len(cl.CPU) > 0 {
		w |= device.WhereCPU
	}
	if len(cl.Accel) > 0 {
		w |= device.WhereAccel
	}
	return w
}

func (cl *Codelet) impl(kind device.Kind) Func {
	switch kind {
	case device.CPU:
		if len(cl.CPU) > 0 {
			return cl.CPU[0]
		}
	case device.Accel:
		if len(cl.Accel) > 0 {
			return cl.Accel[0]
		}
	}
	return nil
}

func (cl *Codelet) footprint(args any) uint32 {
	if cl.Footprint == nil {
		return 0
	}
	return cl.Footprint(args)
}

// RestrictWhere limits the worker kinds cl may run on in this context.
func (c *Context) RestrictWhere(cl *Codelet, where device.Where) error {
	def := cl.DefaultWhere()
	if where == device.WhereNone || !where.SubsetOf(def) {
		return errors.Wrapf(ErrWhereNotSupported, "%s: requested %s, implemented %s", cl.Name, where, def)
	}
	if !where.SubsetOf(c.available) {
		return errors.Wrapf(ErrWhereNotSupported, "%s: requested %s, workers %s", cl.Name, where, c.available)
	}

	c.whereMu.Lock()
	c.where[cl] = where
	c.whereMu.Unlock()

	c.logger.Warn().Str("codelet", cl.Name).Stringer("where", where).Msg("Restricted codelet")
	return nil
}

// RestoreWhere undoes RestrictWhere.
func (c *Context) RestoreWhere(cl *Codelet) {
	c.whereMu.Lock()
	delete(c.where, cl)
	c.whereMu.Unlock()
}

// Where returns the worker kinds cl is currently eligible for.
func (c *Context) Where(cl *Codelet) device.Where {
	c.whereMu.RLock()
	w, ok := c.where[cl]
	c.whereMu.RUnlock()
	if !ok {
		w = cl.DefaultWhere()
	}
	return w & c.available
}
