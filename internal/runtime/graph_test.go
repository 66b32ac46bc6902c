package runtime

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-tessera/internal/device"
	"github.com/23skdu/longbow-tessera/internal/dtype"
)

func TestGraph_WritesAreOrdered(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 4, NAccel: 1})

	h, err := RegisterSlice(c, []float64{0}, RW)
	require.NoError(t, err)
	for d := 1; d <= 6; d++ {
		require.NoError(t, c.Submit(digitCodelet, float64(d), h.As(RW)))
	}
	require.NoError(t, c.WaitForAll())
	assert.Equal(t, 123456.0, readFloat(t, h))
}

func TestGraph_ReadersSeePriorWrite(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 4})

	src, err := RegisterSlice(c, []float64{0}, RW)
	require.NoError(t, err)
	require.NoError(t, c.Submit(digitCodelet, 7.0, src.As(W)))

	dsts := make([]*Handle, 8)
	for i := range dsts {
		dsts[i], err = c.Allocate(8, RW)
		require.NoError(t, err)
		require.NoError(t, c.DataCopy(src, dsts[i]))
	}
	// a later writer must wait for every reader
	require.NoError(t, c.Submit(digitCodelet, 1.0, src.As(RW)))
	require.NoError(t, c.WaitForAll())

	for _, d := range dsts {
		assert.Equal(t, 7.0, readFloat(t, d))
	}
	assert.Equal(t, 71.0, readFloat(t, src))
}

func TestGraph_CommuteIsExclusiveAndUnordered(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 4})

	var active, maxActive atomic.Int32
	add := &Codelet{
		Name: "test_commute_add",
		CPU: []Func{func(args any, buffers [][]byte) error {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			v := dtype.FromBytes[float64](buffers[0])
			v[0] += args.(float64)
			active.Add(-1)
			return nil
		}},
	}

	h, err := RegisterSlice(c, []float64{0}, RW)
	require.NoError(t, err)
	require.NoError(t, c.Submit(digitCodelet, 5.0, h.As(W)))
	for i := 1; i <= 20; i++ {
		require.NoError(t, c.Submit(add, float64(i), h.As(RWCommute)))
	}
	// RW after the commute group sees all contributions
	require.NoError(t, c.Submit(digitCodelet, 0.0, h.As(RW)))
	require.NoError(t, c.WaitForAll())

	assert.Equal(t, 2150.0, readFloat(t, h))
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestGraph_ScratchHasHandleSize(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 2})

	scratch, err := c.Allocate(48, Scratch)
	require.NoError(t, err)
	out, err := RegisterSlice(c, []float64{0}, W)
	require.NoError(t, err)

	sizeOf := &Codelet{
		Name: "test_scratch_size",
		CPU: []Func{func(_ any, buffers [][]byte) error {
			dtype.FromBytes[float64](buffers[1])[0] = float64(len(buffers[0]))
			return nil
		}},
	}
	require.NoError(t, c.Submit(sizeOf, nil, scratch.As(Scratch), out.As(W)))
	require.NoError(t, c.WaitForAll())
	assert.Equal(t, 48.0, readFloat(t, out))
	require.NoError(t, scratch.Unregister())
}

func TestGraph_PanicIsSurfaced(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 1})

	boom := &Codelet{
		Name: "test_panic",
		CPU:  []Func{func(any, [][]byte) error { panic("boom") }},
	}
	h, err := c.Allocate(8, RW)
	require.NoError(t, err)
	require.NoError(t, c.Submit(boom, nil, h.As(RW)))

	err = c.WaitForAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	err = c.Submit(digitCodelet, 1.0, h.As(RW))
	assert.ErrorIs(t, err, ErrSubmission)
}

func TestContext_SubmitAfterClose(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 1})
	h, err := c.Allocate(8, RW)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Submit(digitCodelet, 1.0, h.As(RW)), ErrSubmission)
}

func TestContext_ReserveTags(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 1})
	assert.Equal(t, int64(0), c.ReserveTags(4))
	assert.Equal(t, int64(4), c.ReserveTags(1))
	assert.Equal(t, int64(5), c.ReserveTags(2))
}

func TestContext_NeedsWorkers(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

// syncCounter counts Synchronize calls of the backends it creates.
type syncCounter struct {
	syncs atomic.Int32
}

type countingBackend struct {
	device.Backend
	n *atomic.Int32
}

func (b countingBackend) Synchronize() {
	b.n.Add(1)
	b.Backend.Synchronize()
}

func (s *syncCounter) newBackend(kind device.Kind) device.Backend {
	return countingBackend{Backend: device.NewBackend(kind), n: &s.syncs}
}

func TestWorker_SynchronizesAfterTask(t *testing.T) {
	var counter syncCounter
	c := newTestContext(t, Config{NCPU: 1, NAccel: 1, NewBackend: counter.newBackend})

	h, err := RegisterSlice(c, []float64{0}, RW)
	require.NoError(t, err)
	for _, cl := range []*Codelet{cpuOnlyCodelet, accelOnlyCodelet, digitCodelet} {
		require.NoError(t, c.Submit(cl, 1.0, h.As(RW)))
	}
	require.NoError(t, c.WaitForAll())

	assert.Equal(t, int32(3), counter.syncs.Load())
	assert.Equal(t, 111.0, readFloat(t, h))
}
