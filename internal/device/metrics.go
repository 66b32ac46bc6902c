package device

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scratchHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_scratch_pool_hits_total",
		Help: "Total number of scratch buffers served from a worker pool",
	}, []string{"kind"})

	scratchMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_scratch_pool_misses_total",
		Help: "Total number of scratch buffer pool misses (allocations)",
	}, []string{"kind"})
)
