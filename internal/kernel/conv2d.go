package kernel

import "github.com/23skdu/longbow-tessera/internal/dtype"

// Conv2DArgs describes one tile-level accumulation of a full 2-D
// convolution. Offset is dstStart - srcStart - kernelStart in global
// coordinates, per axis.
type Conv2DArgs struct {
	OffsetX, OffsetY int
	Batch            int
	SrcX, SrcY       int
	KernelX, KernelY int
	DstX, DstY       int
}

// Overlaps reports whether the src and kernel tiles contribute anything to
// the dst tile.
func (a Conv2DArgs) Overlaps() bool {
	return a.OffsetX <= a.SrcX+a.KernelX-2 && a.OffsetX+a.DstX-1 >= 0 &&
		a.OffsetY <= a.SrcY+a.KernelY-2 && a.OffsetY+a.DstY-1 >= 0
}

// Conv2DAccumulate adds the contribution of src (*) kernel to dst:
//
//	dst[x, y, b] += src[i, j, b] * kernel[p, q, b]  where x+Offset = i+p, y+Offset = j+q
//
// All buffers are column-major with the batch axis last.
func Conv2DAccumulate[T dtype.Float](a Conv2DArgs, src, kernel, dst []T) {
	srcSize := a.SrcX * a.SrcY
	kerSize := a.KernelX * a.KernelY
	dstSize := a.DstX * a.DstY
	for b := 0; b < a.Batch; b++ {
		s := src[b*srcSize : (b+1)*srcSize]
		k := kernel[b*kerSize : (b+1)*kerSize]
		d := dst[b*dstSize : (b+1)*dstSize]
		for q := 0; q < a.KernelY; q++ {
			for p := 0; p < a.KernelX; p++ {
				w := k[p+q*a.KernelX]
				// dst x = i + p - OffsetX must land in [0, DstX)
				iLo := max(0, a.OffsetX-p)
				iHi := min(a.SrcX, a.DstX+a.OffsetX-p)
				jLo := max(0, a.OffsetY-q)
				jHi := min(a.SrcY, a.DstY+a.OffsetY-q)
				for j := jLo; j < jHi; j++ {
					y := j + q - a.OffsetY
					for i := iLo; i < iHi; i++ {
						x := i + p - a.OffsetX
						d[x+y*a.DstX] += w * s[i+j*a.SrcX]
					}
				}
			}
		}
	}
}

// Conv2D computes the full convolution of an nx-by-ny src with an mx-by-my
// kernel into dst of shape (nx+mx-1, ny+my-1), overwriting dst.
func Conv2D[T dtype.Float](nx, ny int, src []T, mx, my int, kernel []T, dst []T) {
	clear(dst[:(nx+mx-1)*(ny+my-1)])
	args := Conv2DArgs{Batch: 1, SrcX: nx, SrcY: ny, KernelX: mx, KernelY: my}
	args.DstX, args.DstY = nx+mx-1, ny+my-1
	Conv2DAccumulate(args, src, kernel, dst)
}
