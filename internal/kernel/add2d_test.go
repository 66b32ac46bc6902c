package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/23skdu/longbow-tessera/internal/dtype"
)

func scaledAddCase[T dtype.Float](t *testing.T, add func(int, int, T, []T, int, T, []T, int)) {
	const nx, ny = 3, 5
	src := make([]T, nx*ny)
	dst := make([]T, nx*ny)
	for i := range src {
		src[i] = T(i)
		dst[i] = 1
	}
	add(nx, ny, 2, src, nx, 0.5, dst, nx)
	for i := range dst {
		assert.Equal(t, T(2*i)+0.5, dst[i], "element %d", i)
	}
}

func TestAdd2D_ScaledAdd(t *testing.T) {
	t.Run("cpu/fp32", func(t *testing.T) { scaledAddCase[float32](t, Add2D[float32]) })
	t.Run("cpu/fp64", func(t *testing.T) { scaledAddCase[float64](t, Add2D[float64]) })
	t.Run("blas/fp32", func(t *testing.T) { scaledAddCase[float32](t, Add2DBLAS[float32]) })
	t.Run("blas/fp64", func(t *testing.T) { scaledAddCase[float64](t, Add2DBLAS[float64]) })
}

func TestAdd2D_LeadingDimensions(t *testing.T) {
	// 2x2 block inside a 4-row source and a 3-row destination
	src := []float64{
		1, 2, 9, 9,
		3, 4, 9, 9,
	}
	dst := []float64{
		10, 20, 7,
		30, 40, 7,
	}
	Add2D(2, 2, 1.0, src, 4, 1.0, dst, 3)
	assert.Equal(t, []float64{11, 22, 7, 33, 44, 7}, dst)

	dst2 := []float64{10, 20, 7, 30, 40, 7}
	Add2DBLAS(2, 2, 1.0, src, 4, 1.0, dst2, 3)
	assert.Equal(t, dst, dst2)
}

func TestClear(t *testing.T) {
	b := dtype.ToBytes([]float32{1, 2, 3})
	Clear(b)
	assert.Equal(t, []float32{0, 0, 0}, dtype.FromBytes[float32](b))
}

func TestGelu(t *testing.T) {
	data := []float64{0, 1, -1, 3}
	Gelu(data)
	assert.Equal(t, 0.0, data[0])
	assert.InDelta(t, 0.8413447460685429, data[1], 1e-12)
	assert.InDelta(t, -0.15865525393145707, data[2], 1e-12)
	assert.InDelta(t, 2.9959502, data[3], 1e-6)

	f := []float32{1}
	Gelu(f)
	assert.InDelta(t, 0.8413447, f[0], 1e-6)
}
