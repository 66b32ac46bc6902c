package runtime

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_ZeroSize(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 1})

	_, err := c.Register(nil, RW)
	assert.ErrorIs(t, err, ErrZeroSize)
	_, err = c.Allocate(0, W)
	assert.ErrorIs(t, err, ErrZeroSize)
	_, err = RegisterSlice(c, []float32{}, R)
	assert.ErrorIs(t, err, ErrZeroSize)
}

func TestHandle_TeardownFromMode(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 1})

	tests := []struct {
		mode AccessMode
		want Teardown
	}{
		{R, TeardownNoCoherency},
		{W, TeardownWriteBack},
		{RW, TeardownWriteBack},
		{RWCommute, TeardownWriteBack},
		{Scratch, TeardownDeferred},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			h, err := c.Allocate(16, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.Teardown())
			assert.True(t, h.IsLocal())
			assert.Equal(t, int64(-1), h.Tag())
			require.NoError(t, h.Unregister())
		})
	}
}

func TestHandle_AcquireBlocksLaterTasks(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 2})

	h, err := RegisterSlice(c, []float64{0}, RW)
	require.NoError(t, err)

	ld, err := h.Acquire(RW)
	require.NoError(t, err)

	_, err = h.Acquire(R)
	assert.ErrorIs(t, err, ErrAlreadyAcquired)

	require.NoError(t, c.Submit(digitCodelet, 3.0, h.As(RW)))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0.0, Floats[float64](ld)[0], "task must wait for release")
	Floats[float64](ld)[0] = 2
	ld.Release()
	ld.Release() // idempotent

	require.NoError(t, c.WaitForAll())
	assert.Equal(t, 23.0, readFloat(t, h))

	_, err = h.Acquire(Scratch)
	assert.ErrorIs(t, err, ErrSubmission)
}

func TestHandle_RefAndUnregister(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	c := newTestContext(t, Config{NCPU: 1, Allocator: mem})

	h, err := c.Allocate(64, RW)
	require.NoError(t, err)
	h.Ref()

	require.NoError(t, h.Unregister())
	require.NoError(t, c.Submit(digitCodelet, 1.0, h.As(RW)), "one owner left")
	require.NoError(t, h.Unregister())

	assert.ErrorIs(t, c.Submit(digitCodelet, 1.0, h.As(RW)), ErrSubmission)
	assert.ErrorIs(t, h.Unregister(), ErrUnregistered)
	_, err = h.Acquire(R)
	assert.ErrorIs(t, err, ErrUnregistered)

	mem.AssertSize(t, 0)
}

func TestHandle_WriteBackWaitsForTasks(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 1})

	var finished atomic.Bool
	slow := &Codelet{
		Name: "test_slow",
		CPU: []Func{func(any, [][]byte) error {
			time.Sleep(30 * time.Millisecond)
			finished.Store(true)
			return nil
		}},
	}
	h, err := c.Allocate(8, RW)
	require.NoError(t, err)
	require.NoError(t, c.Submit(slow, nil, h.As(RW)))
	require.NoError(t, h.Unregister())
	assert.True(t, finished.Load())
}

func TestHandle_DeferredTeardown(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	c := newTestContext(t, Config{NCPU: 1, Allocator: mem})

	release := make(chan struct{})
	blocked := &Codelet{
		Name: "test_blocked",
		CPU: []Func{func(any, [][]byte) error {
			<-release
			return nil
		}},
	}
	scratch, err := c.Allocate(32, Scratch)
	require.NoError(t, err)
	require.NoError(t, c.Submit(blocked, nil, scratch.As(Scratch)))

	// returns while the scratch user is still running
	require.NoError(t, scratch.Unregister())
	close(release)
	require.NoError(t, c.WaitForAll())
	mem.AssertSize(t, 0)
}

func TestHandle_UnregisterWhileAcquired(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 1})
	h, err := c.Allocate(8, RW)
	require.NoError(t, err)

	ld, err := h.Acquire(R)
	require.NoError(t, err)
	assert.ErrorIs(t, h.Unregister(), ErrAlreadyAcquired)
	ld.Release()
	assert.NoError(t, h.Unregister())
}

func TestDataCopy(t *testing.T) {
	c := newTestContext(t, Config{NCPU: 1})

	src, err := RegisterSlice(c, []float64{1, 2, 3}, R)
	require.NoError(t, err)
	dst, err := c.Allocate(24, W)
	require.NoError(t, err)
	require.NoError(t, c.DataCopy(src, dst))
	require.NoError(t, c.WaitForAll())

	ld, err := dst.Acquire(R)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, Floats[float64](ld))
	ld.Release()

	small, err := c.Allocate(8, W)
	require.NoError(t, err)
	assert.ErrorIs(t, c.DataCopy(src, small), ErrSubmission)
}
