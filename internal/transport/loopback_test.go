package transport

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestLoopback_SendRecv(t *testing.T) {
	w := NewWorld(3)
	defer w.Close()
	ctx := context.Background()

	a, b := w.Endpoint(0), w.Endpoint(2)
	assert.Equal(t, 3, a.Size())
	assert.Equal(t, 2, b.Rank())

	payload := []byte{1, 2, 3}
	require.NoError(t, a.Send(ctx, 2, 7, payload))
	payload[0] = 9 // sender keeps ownership of its buffer

	got, err := b.Recv(ctx, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestLoopback_FIFOPerTag(t *testing.T) {
	w := NewWorld(2)
	defer w.Close()
	ctx := context.Background()

	src, dst := w.Endpoint(0), w.Endpoint(1)
	for i := byte(0); i < 5; i++ {
		require.NoError(t, src.Send(ctx, 1, 1, []byte{i}))
	}
	require.NoError(t, src.Send(ctx, 1, 2, []byte{42}))

	got, err := dst.Recv(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{42}, got)
	for i := byte(0); i < 5; i++ {
		got, err := dst.Recv(ctx, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, []byte{i}, got)
	}
	assert.Equal(t, 0, w.boxes[1].Pending())
}

func TestLoopback_RecvBlocksUntilSend(t *testing.T) {
	w := NewWorld(2)
	defer w.Close()
	ctx := context.Background()

	var g errgroup.Group
	var got []byte
	g.Go(func() error {
		var err error
		got, err = w.Endpoint(1).Recv(ctx, 0, 3)
		return err
	})
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, w.Endpoint(0).Send(ctx, 1, 3, []byte("tile")))
	require.NoError(t, g.Wait())
	assert.Equal(t, "tile", string(got))
}

func TestLoopback_Errors(t *testing.T) {
	w := NewWorld(2)
	ctx := context.Background()

	err := w.Endpoint(0).Send(ctx, 5, 0, nil)
	assert.True(t, errors.Is(err, ErrInvalidRank))

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = w.Endpoint(0).Recv(cctx, 1, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() {
		_, err := w.Endpoint(1).Recv(ctx, 0, 0)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, w.Endpoint(1).Close())
	assert.ErrorIs(t, <-done, ErrClosed)
	assert.ErrorIs(t, w.Endpoint(0).Send(ctx, 1, 0, []byte{1}), ErrClosed)
}
