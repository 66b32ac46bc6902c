package kernel

import "github.com/23skdu/longbow-tessera/internal/dtype"

// Subcopy copies an N-d block of the given shape starting at srcStart in src
// to dstStart in dst. Strides are the column-major strides of each buffer.
// index must hold at least len(shape) entries; it is clobbered.
func Subcopy[T dtype.Float](srcStart, srcStride, shape []int, src []T,
	dstStart, dstStride []int, dst []T, index []int64) {

	ndim := len(shape)
	srcOff, dstOff := 0, 0
	for i := 0; i < ndim; i++ {
		srcOff += srcStart[i] * srcStride[i]
		dstOff += dstStart[i] * dstStride[i]
	}
	if ndim == 0 {
		dst[dstOff] = src[srcOff]
		return
	}

	// axis 0 is contiguous in both buffers
	run := shape[0]
	idx := index[:ndim]
	for i := range idx {
		idx[i] = 0
	}
	for {
		copy(dst[dstOff:dstOff+run], src[srcOff:srcOff+run])

		j := 1
		for ; j < ndim; j++ {
			idx[j]++
			srcOff += srcStride[j]
			dstOff += dstStride[j]
			if int(idx[j]) < shape[j] {
				break
			}
			srcOff -= shape[j] * srcStride[j]
			dstOff -= shape[j] * dstStride[j]
			idx[j] = 0
		}
		if j == ndim {
			return
		}
	}
}
