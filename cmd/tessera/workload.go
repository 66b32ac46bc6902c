package main

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-tessera/internal/runtime"
	"github.com/23skdu/longbow-tessera/internal/tensor"
)

// workload is the demo run by every rank: scatter two matrices from rank 0,
// multiply them, apply GeLU, add a residual, smooth with a small
// convolution and gather the result back on rank 0.
type workload struct {
	n, tile, iters int
}

// procGrid factors size into a near-square 2-D process grid.
func procGrid(size int) []int {
	p := 1
	for d := 1; d*d <= size; d++ {
		if size%d == 0 {
			p = d
		}
	}
	return []int{size / p, p}
}

func (w workload) run(ctx *runtime.Context) error {
	logger := ctx.Logger()
	if w.n <= 0 || w.tile <= 0 || w.iters <= 0 {
		return errors.Errorf("bad workload n=%d tile=%d iters=%d", w.n, w.tile, w.iters)
	}

	shape := []int{w.n, w.n}
	whole, err := tensor.NewTraits(shape, shape)
	if err != nil {
		return err
	}
	tiled, err := tensor.NewTraits(shape, []int{w.tile, w.tile})
	if err != nil {
		return err
	}
	distr, err := tensor.BlockCyclic(tiled.Grid().Shape(), procGrid(ctx.Size()), 0, ctx.Size())
	if err != nil {
		return err
	}

	host, err := tensor.NewOnRank[float32](ctx, whole, 0)
	if err != nil {
		return err
	}
	defer host.Unregister()
	a, err := tensor.New[float32](ctx, tiled, distr)
	if err != nil {
		return err
	}
	defer a.Unregister()
	b, err := tensor.New[float32](ctx, tiled, distr)
	if err != nil {
		return err
	}
	defer b.Unregister()
	c, err := tensor.New[float32](ctx, tiled, distr)
	if err != nil {
		return err
	}
	defer c.Unregister()

	// 3x3 box filter on rank 0; the smoothed result is (n+2)x(n+2).
	kernTraits := tensor.MustTraits([]int{3, 3}, []int{3, 3})
	kern, err := tensor.NewOnRank[float32](ctx, kernTraits, 0)
	if err != nil {
		return err
	}
	defer kern.Unregister()
	smoothTraits := tensor.MustTraits([]int{w.n + 2, w.n + 2}, []int{w.tile, w.tile})
	smoothDistr, err := tensor.BlockCyclic(smoothTraits.Grid().Shape(), procGrid(ctx.Size()), 0, ctx.Size())
	if err != nil {
		return err
	}
	smooth, err := tensor.New[float32](ctx, smoothTraits, smoothDistr)
	if err != nil {
		return err
	}
	defer smooth.Unregister()

	zero := []int{0, 0}
	if ctx.Rank() == 0 {
		box := make([]float32, 9)
		for i := range box {
			box[i] = 1.0 / 9
		}
		if err := tensor.FromArray(kern, box, []int{3, 3}); err != nil {
			return err
		}
		if err := tensor.FromArray(host, hostMatrix(w.n, 1), shape); err != nil {
			return err
		}
	}
	if err := tensor.CopyIntersection(host, zero, a, zero); err != nil {
		return err
	}
	if ctx.Rank() == 0 {
		if err := tensor.FromArray(host, hostMatrix(w.n, 2), shape); err != nil {
			return err
		}
	}
	host.FlushCache()
	if err := tensor.CopyIntersection(host, zero, b, zero); err != nil {
		return err
	}

	flops := 2 * float64(w.n) * float64(w.n) * float64(w.n)
	for it := 0; it < w.iters; it++ {
		start := time.Now()
		if err := tensor.GemmAsync(1/float32(w.n), tensor.NoTrans, a, tensor.NoTrans, b, 0, c); err != nil {
			return err
		}
		if err := tensor.GeluAsync(c); err != nil {
			return err
		}
		if err := tensor.AddAsync(1, a, 1, c); err != nil {
			return err
		}
		if err := tensor.Conv2DAsync(c, kern, smooth); err != nil {
			return err
		}
		if err := ctx.WaitForAll(); err != nil {
			return err
		}
		elapsed := time.Since(start)
		logger.Info().
			Int("iter", it).
			Dur("elapsed", elapsed).
			Str("gemm_rate", humanize.SIWithDigits(flops/elapsed.Seconds(), 2, "FLOP/s")).
			Msg("Workload iteration")
	}

	// The interior of the smoothed matrix is gathered back on rank 0.
	if err := tensor.CopyIntersection(smooth, []int{-1, -1}, host, zero); err != nil {
		return err
	}
	if ctx.Rank() == 0 {
		out, err := tensor.ToArray(host, shape)
		if err != nil {
			return err
		}
		var sum float64
		for _, v := range out {
			sum += float64(v)
		}
		logger.Info().
			Float64("checksum", sum).
			Str("bytes", humanize.IBytes(uint64(4*len(out)))).
			Msg("Workload result")
	}
	log.Debug().Int("rank", ctx.Rank()).Msg("Workload done")
	return nil
}

// hostMatrix builds a deterministic n-by-n column-major matrix.
func hostMatrix(n int, seed int) []float32 {
	m := make([]float32, n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			m[i+j*n] = float32((i*seed+j*(seed+1))%17-8) / 8
		}
	}
	return m
}
