package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, -1, cfg.NCPU)
	assert.Equal(t, 1, cfg.NAccel)
	assert.Equal(t, 3, cfg.CalibrationSamples)
	assert.Equal(t, 1, cfg.Size)
	assert.Equal(t, uint64(64<<20), cfg.MaxInflightBytes)
	assert.Equal(t, time.Second, cfg.BreakerTimeout)
	assert.False(t, cfg.Distributed())
	assert.Contains(t, cfg.String(), "inflight=64 MiB")
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tessera.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ncpu: 4
naccel: 0
size: 2
rank: 1
peers:
  - localhost:4000
  - localhost:4001
max_inflight_bytes: 8MB
breaker_timeout: 250ms
`), 0o600))

	t.Setenv("TESSERA_NCPU", "2")
	t.Setenv("TESSERA_OTEL", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.NCPU, "environment wins over file")
	assert.Equal(t, 0, cfg.NAccel)
	assert.Equal(t, 1, cfg.Rank)
	assert.Equal(t, []string{"localhost:4000", "localhost:4001"}, cfg.Peers)
	assert.Equal(t, uint64(8_000_000), cfg.MaxInflightBytes)
	assert.Equal(t, 250*time.Millisecond, cfg.BreakerTimeout)
	assert.True(t, cfg.OTel)
	assert.True(t, cfg.Distributed())

	fc := cfg.Flight()
	assert.Equal(t, 1, fc.Rank)
	assert.Equal(t, int64(8_000_000), fc.MaxInflightBytes)
	rc := cfg.Runtime()
	assert.Equal(t, 2, rc.NCPU)
}

func TestLoad_PeersFromEnv(t *testing.T) {
	t.Setenv("TESSERA_SIZE", "3")
	t.Setenv("TESSERA_PEERS", "a:1,b:2, c:3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2", "c:3"}, cfg.Peers)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
	t.Run("bytes", func(t *testing.T) {
		t.Setenv("TESSERA_MAX_INFLIGHT_BYTES", "lots")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrInvalid)
	})
	t.Run("rank", func(t *testing.T) {
		t.Setenv("TESSERA_RANK", "2")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrInvalid)
	})
	t.Run("peers", func(t *testing.T) {
		t.Setenv("TESSERA_SIZE", "2")
		t.Setenv("TESSERA_PEERS", "a:1")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrInvalid)
	})
}
