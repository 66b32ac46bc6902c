package kernel

import (
	"math"

	"github.com/23skdu/longbow-tessera/internal/dtype"
)

// Gelu applies x*Phi(x) in place, Phi being the standard normal CDF.
func Gelu[T dtype.Float](data []T) {
	for i, v := range data {
		x := float64(v)
		data[i] = T(0.5 * x * (1 + math.Erf(x/math.Sqrt2)))
	}
}
