package kernel

import "github.com/23skdu/longbow-tessera/internal/dtype"

// Add2D computes dst = alpha*src + beta*dst over an nx-by-ny column-major
// region with leading dimensions ldSrc and ldDst.
func Add2D[T dtype.Float](nx, ny int, alpha T, src []T, ldSrc int, beta T, dst []T, ldDst int) {
	for j := 0; j < ny; j++ {
		s := src[j*ldSrc : j*ldSrc+nx]
		d := dst[j*ldDst : j*ldDst+nx]
		for i := range d {
			d[i] = alpha*s[i] + beta*d[i]
		}
	}
}
