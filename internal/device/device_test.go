package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhere(t *testing.T) {
	assert.True(t, WhereAny.Has(CPU))
	assert.True(t, WhereAny.Has(Accel))
	assert.False(t, WhereCPU.Has(Accel))

	assert.True(t, WhereCPU.SubsetOf(WhereAny))
	assert.False(t, WhereAny.SubsetOf(WhereCPU))
	assert.True(t, WhereNone.SubsetOf(WhereCPU))

	assert.Equal(t, "cpu|accel", WhereAny.String())
	assert.Equal(t, "none", WhereNone.String())
	assert.Equal(t, "accel", Accel.String())
}

func TestNewBackend(t *testing.T) {
	cpu := NewBackend(CPU)
	assert.Equal(t, CPU, cpu.Kind())
	assert.Equal(t, "CPU", cpu.Name())

	accel := NewBackend(Accel)
	assert.Equal(t, Accel, accel.Kind())
	assert.Contains(t, accel.Name(), "BLAS(")
	accel.Synchronize()
}
