package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/23skdu/longbow-tessera/internal/tile"
)

// subcopyCase copies a block of copyShape from src (shape srcShape) at
// srcStart into dst (shape dstShape) at dstStart and checks every element.
func subcopyCase(t *testing.T, srcShape, srcStart, dstShape, dstStart, copyShape []int) {
	t.Helper()
	srcT := tile.MustTraits(srcShape)
	dstT := tile.MustTraits(dstShape)

	src := make([]float64, srcT.Nelems())
	for i := range src {
		src[i] = float64(i + 1)
	}
	dst := make([]float64, dstT.Nelems())
	for i := range dst {
		dst[i] = -1
	}

	index := make([]int64, 2*len(copyShape))
	Subcopy(srcStart, srcT.Stride(), copyShape, src, dstStart, dstT.Stride(), dst, index)

	block := tile.NewRange(dstStart, addInts(dstStart, copyShape))
	for i := range dst {
		idx := dstT.LinearToIndex(i)
		if !inRange(block, idx) {
			assert.Equal(t, -1.0, dst[i], "untouched element %v", idx)
			continue
		}
		srcIdx := make([]int, len(idx))
		for k := range idx {
			srcIdx[k] = idx[k] - dstStart[k] + srcStart[k]
		}
		assert.Equal(t, src[srcT.IndexToLinear(srcIdx)], dst[i], "element %v", idx)
	}
}

func addInts(a, b []int) []int {
	out := make([]int, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func inRange(r tile.Range, idx []int) bool {
	for i := range idx {
		if idx[i] < r.Begin[i] || idx[i] >= r.End[i] {
			return false
		}
	}
	return true
}

func TestSubcopy(t *testing.T) {
	tests := []struct {
		name                                        string
		srcShape, srcStart, dstShape, dstStart, cps []int
	}{
		{"1d", []int{10}, []int{3}, []int{6}, []int{1}, []int{4}},
		{"2d", []int{5, 4}, []int{1, 2}, []int{3, 6}, []int{0, 1}, []int{2, 2}},
		{"3d", []int{4, 3, 5}, []int{1, 0, 2}, []int{5, 5, 5}, []int{2, 1, 0}, []int{3, 3, 2}},
		{"whole", []int{2, 3}, []int{0, 0}, []int{2, 3}, []int{0, 0}, []int{2, 3}},
		{"4d", []int{3, 2, 2, 3}, []int{1, 1, 0, 1}, []int{2, 2, 3, 2}, []int{0, 1, 1, 0}, []int{2, 1, 2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subcopyCase(t, tt.srcShape, tt.srcStart, tt.dstShape, tt.dstStart, tt.cps)
		})
	}
}

func TestSubcopy_Scalar(t *testing.T) {
	src := []float32{5}
	dst := []float32{0}
	Subcopy(nil, nil, nil, src, nil, nil, dst, nil)
	assert.Equal(t, float32(5), dst[0])
}
