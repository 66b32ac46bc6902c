package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_tasks_submitted_total",
		Help: "Tasks submitted per codelet",
	}, []string{"codelet"})

	tasksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_tasks_executed_total",
		Help: "Tasks executed per codelet and worker kind",
	}, []string{"codelet", "kind"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tessera_task_duration_seconds",
		Help:    "Task execution time per codelet and worker kind",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	}, []string{"codelet", "kind"})

	readyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tessera_ready_queue_depth",
		Help: "Tasks queued on workers and not yet started",
	})

	handlesRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tessera_handles_registered",
		Help: "Live data handles",
	})

	bytesAllocated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tessera_bytes_allocated",
		Help: "Bytes held by runtime-allocated handles and replicas",
	})

	asyncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tessera_async_errors_total",
		Help: "Failed tasks and transfers",
	})
)
