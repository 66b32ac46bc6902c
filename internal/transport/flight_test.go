package transport

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlightPair(t *testing.T) (*Flight, *Flight) {
	t.Helper()
	a, err := NewFlight(FlightConfig{Rank: 0, Listen: "localhost:0"})
	require.NoError(t, err)
	b, err := NewFlight(FlightConfig{Rank: 1, Listen: "localhost:0", MaxInflightBytes: 1024})
	require.NoError(t, err)

	addrs := []string{a.Addr().String(), b.Addr().String()}
	a.SetPeers(addrs)
	b.SetPeers(addrs)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestFlight_RoundTrip(t *testing.T) {
	a, b := newFlightPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	assert.Equal(t, 2, a.Size())

	payload := bytes.Repeat([]byte{0xab}, 4096)
	require.NoError(t, a.Send(ctx, 1, 11, payload))
	require.NoError(t, a.Send(ctx, 1, 11, []byte("second")))

	got, err := b.Recv(ctx, 0, 11)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	got, err = b.Recv(ctx, 0, 11)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	// payloads larger than the in-flight budget still go through
	big := bytes.Repeat([]byte{1}, 8192)
	require.NoError(t, b.Send(ctx, 0, 12, big))
	got, err = a.Recv(ctx, 1, 12)
	require.NoError(t, err)
	assert.Len(t, got, len(big))
}

func TestFlight_SelfSend(t *testing.T) {
	a, _ := newFlightPair(t)
	ctx := context.Background()

	require.NoError(t, a.Send(ctx, 0, 1, []byte{5}))
	got, err := a.Recv(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{5}, got)
}

func TestFlight_BreakerOpensOnUnreachablePeer(t *testing.T) {
	a, err := NewFlight(FlightConfig{
		Rank:            0,
		Listen:          "localhost:0",
		BreakerFailures: 2,
		BreakerTimeout:  time.Hour,
	})
	require.NoError(t, err)
	defer a.Close()

	// port 1 on localhost is not a flight server
	a.SetPeers([]string{a.Addr().String(), "localhost:1"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, a.Send(ctx, 1, 0, []byte{1}))
	assert.Error(t, a.Send(ctx, 1, 0, []byte{1}))
	err = a.Send(ctx, 1, 0, []byte{1})
	assert.ErrorIs(t, err, ErrBreakerOpen)

	assert.ErrorIs(t, a.Send(ctx, 3, 0, nil), ErrInvalidRank)
}
