package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transferBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_transport_bytes_total",
		Help: "Payload bytes moved between ranks",
	}, []string{"transport", "direction"})

	transferMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_transport_messages_total",
		Help: "Payloads moved between ranks",
	}, []string{"transport", "direction"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tessera_transport_breaker_state",
		Help: "Circuit breaker state per peer (0=closed, 1=open, 2=half-open)",
	}, []string{"peer"})
)

func observeSend(transport string, n int) {
	transferBytes.WithLabelValues(transport, "send").Add(float64(n))
	transferMessages.WithLabelValues(transport, "send").Inc()
}

func observeRecv(transport string, n int) {
	transferBytes.WithLabelValues(transport, "recv").Add(float64(n))
	transferMessages.WithLabelValues(transport, "recv").Inc()
}
