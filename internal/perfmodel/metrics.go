package perfmodel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var entriesGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "tessera_perfmodel_entries",
	Help: "Number of (codelet, footprint, kind) buckets in performance models",
})
