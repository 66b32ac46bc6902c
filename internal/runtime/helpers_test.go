package runtime

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-tessera/internal/dtype"
)

func newTestContext(t *testing.T, cfg Config) *Context {
	t.Helper()
	if cfg.Logger == nil {
		l := zerolog.Nop()
		cfg.Logger = &l
	}
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// appendDigit sets v = 10*v + d on the first element of its only buffer.
func appendDigit(args any, buffers [][]byte) error {
	v := dtype.FromBytes[float64](buffers[0])
	v[0] = v[0]*10 + args.(float64)
	return nil
}

var digitCodelet = &Codelet{
	Name:  "test_append_digit",
	CPU:   []Func{appendDigit},
	Accel: []Func{appendDigit},
}

var cpuOnlyCodelet = &Codelet{
	Name: "test_cpu_only",
	CPU:  []Func{appendDigit},
}

var accelOnlyCodelet = &Codelet{
	Name:  "test_accel_only",
	Accel: []Func{appendDigit},
}

func readFloat(t *testing.T, h *Handle) float64 {
	t.Helper()
	ld, err := h.Acquire(R)
	require.NoError(t, err)
	defer ld.Release()
	return Floats[float64](ld)[0]
}
