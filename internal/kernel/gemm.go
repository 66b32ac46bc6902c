package kernel

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/23skdu/longbow-tessera/internal/dtype"
)

// GemmArgs describes C = alpha*op(A)*op(B) + beta*C for column-major
// matrices, C being m-by-n and op(A) m-by-k.
type GemmArgs struct {
	TransA, TransB bool
	M, N, K        int
	LDA, LDB, LDC  int
}

// Gemm is the reference implementation.
func Gemm[T dtype.Float](g GemmArgs, alpha T, a, b []T, beta T, c []T) {
	at := func(i, l int) T {
		if g.TransA {
			return a[l+i*g.LDA]
		}
		return a[i+l*g.LDA]
	}
	bt := func(l, j int) T {
		if g.TransB {
			return b[j+l*g.LDB]
		}
		return b[l+j*g.LDB]
	}
	for j := 0; j < g.N; j++ {
		for i := 0; i < g.M; i++ {
			var sum T
			for l := 0; l < g.K; l++ {
				sum += at(i, l) * bt(l, j)
			}
			idx := i + j*g.LDC
			if beta == 0 {
				c[idx] = alpha * sum
			} else {
				c[idx] = alpha*sum + beta*c[idx]
			}
		}
	}
}

func transpose(t bool) blas.Transpose {
	if t {
		return blas.Trans
	}
	return blas.NoTrans
}

// GemmBLAS runs Gemm through the registered BLAS implementation. gonum's
// BLAS is row-major, so the column-major product is computed as
// C^T = op(B)^T * op(A)^T.
func GemmBLAS[T dtype.Float](g GemmArgs, alpha T, a, b []T, beta T, c []T) {
	tA, tB := transpose(g.TransA), transpose(g.TransB)
	switch cc := any(c).(type) {
	case []float32:
		blas32.Implementation().Sgemm(tB, tA, g.N, g.M, g.K,
			float32(alpha), any(b).([]float32), g.LDB, any(a).([]float32), g.LDA,
			float32(beta), cc, g.LDC)
	case []float64:
		blas64.Implementation().Dgemm(tB, tA, g.N, g.M, g.K,
			float64(alpha), any(b).([]float64), g.LDB, any(a).([]float64), g.LDA,
			float64(beta), cc, g.LDC)
	}
}

// Add2DBLAS is Add2D using BLAS scal and axpy per column.
func Add2DBLAS[T dtype.Float](nx, ny int, alpha T, src []T, ldSrc int, beta T, dst []T, ldDst int) {
	switch d := any(dst).(type) {
	case []float32:
		s := any(src).([]float32)
		impl := blas32.Implementation()
		for j := 0; j < ny; j++ {
			col := d[j*ldDst : j*ldDst+nx]
			impl.Sscal(nx, float32(beta), col, 1)
			impl.Saxpy(nx, float32(alpha), s[j*ldSrc:j*ldSrc+nx], 1, col, 1)
		}
	case []float64:
		s := any(src).([]float64)
		impl := blas64.Implementation()
		for j := 0; j < ny; j++ {
			col := d[j*ldDst : j*ldDst+nx]
			impl.Dscal(nx, float64(beta), col, 1)
			impl.Daxpy(nx, float64(alpha), s[j*ldSrc:j*ldSrc+nx], 1, col, 1)
		}
	}
}
