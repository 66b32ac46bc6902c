package tensor

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/23skdu/longbow-tessera/internal/dtype"
	"github.com/23skdu/longbow-tessera/internal/runtime"
	"github.com/23skdu/longbow-tessera/internal/tile"
	"github.com/23skdu/longbow-tessera/internal/transport"
)

// newWorld starts n ranks connected by a loopback world.
func newWorld(t *testing.T, n int) []*runtime.Context {
	t.Helper()
	world := transport.NewWorld(n)
	t.Cleanup(world.Close)

	ctxs := make([]*runtime.Context, n)
	for r := range ctxs {
		l := zerolog.Nop()
		c, err := runtime.New(runtime.Config{
			NCPU:      2,
			Transport: world.Endpoint(r),
			Logger:    &l,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		ctxs[r] = c
	}
	return ctxs
}

// spmd runs fn on every rank concurrently.
func spmd(t *testing.T, ctxs []*runtime.Context, fn func(ctx *runtime.Context) error) {
	t.Helper()
	var g errgroup.Group
	for _, c := range ctxs {
		g.Go(func() error { return fn(c) })
	}
	require.NoError(t, g.Wait())
}

// layouts returns distributions of a tile grid over size ranks.
func layouts(grid []int, size int) map[string][]int {
	n := 1
	for _, g := range grid {
		n *= g
	}
	onZero := make([]int, n)
	onLast := make([]int, n)
	for i := range onLast {
		onLast[i] = size - 1
	}
	proc := make([]int, len(grid))
	for i := range proc {
		proc[i] = 1
	}
	if len(proc) > 0 {
		proc[0] = size
	}
	cyclic, err := BlockCyclic(grid, proc, 0, size)
	if err != nil {
		panic(err)
	}
	shifted, err := BlockCyclic(grid, proc, 1, size)
	if err != nil {
		panic(err)
	}
	return map[string][]int{
		"on_zero": onZero,
		"on_last": onLast,
		"cyclic":  cyclic,
		"shifted": shifted,
	}
}

// fill writes f(global index) into every locally owned element of x.
func fill[T dtype.Float](x *Tensor[T], f func(idx []int) T) error {
	ctx := x.Context()
	for i := range x.handles {
		if x.TileRank(i) != ctx.Rank() {
			continue
		}
		index := x.TileIndex(i)
		start := x.TileStart(index)
		tt := tile.MustTraits(x.TileShape(index))
		ld, err := x.TileHandle(i).Acquire(runtime.W)
		if err != nil {
			return err
		}
		v := runtime.Floats[T](ld)
		global := make([]int, len(start))
		for local := range tile.Full(tt.Shape()).All() {
			for k := range local {
				global[k] = start[k] + local[k]
			}
			v[tt.IndexToLinear(local)] = f(global)
		}
		ld.Release()
	}
	return nil
}

// gather copies every locally owned element of x into out, a column-major
// array of x's full shape. Ranks write disjoint elements.
func gather[T dtype.Float](x *Tensor[T], out []T) error {
	ctx := x.Context()
	for i := range x.handles {
		if x.TileRank(i) != ctx.Rank() {
			continue
		}
		index := x.TileIndex(i)
		start := x.TileStart(index)
		tt := tile.MustTraits(x.TileShape(index))
		ld, err := x.TileHandle(i).Acquire(runtime.R)
		if err != nil {
			return err
		}
		v := runtime.Floats[T](ld)
		global := make([]int, len(start))
		for local := range tile.Full(tt.Shape()).All() {
			for k := range local {
				global[k] = start[k] + local[k]
			}
			out[x.IndexToLinear(global)] = v[tt.IndexToLinear(local)]
		}
		ld.Release()
	}
	return nil
}

// dense evaluates f over every element of shape in column-major order.
func dense[T dtype.Float](shape []int, f func(idx []int) T) []T {
	tr := tile.MustTraits(shape)
	out := make([]T, tr.Nelems())
	for idx := range tile.Full(shape).All() {
		out[tr.IndexToLinear(idx)] = f(idx)
	}
	return out
}

// code identifies an element by its coordinates.
func code(idx []int) float64 {
	v := 1.0
	for _, x := range idx {
		v = v*100 + float64(x)
	}
	return v
}
