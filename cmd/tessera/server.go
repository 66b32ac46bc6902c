package main

import (
	"net/http"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/23skdu/longbow-tessera/internal/perfmodel"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_http_requests_total",
		Help: "HTTP requests served per endpoint and status code",
	}, []string{"endpoint", "code"})
)

// ModelInterface exposes the performance model for inspection.
type ModelInterface interface {
	Snapshot() []perfmodel.Record
}

// StatusInterface reports the sticky error of a runtime context.
type StatusInterface interface {
	Rank() int
	Err() error
}

type Server struct {
	model    ModelInterface
	statuses []StatusInterface
}

func NewServer(model ModelInterface, statuses []StatusInterface) *Server {
	return &Server{model: model, statuses: statuses}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/perfmodel", s.handlePerfmodel)
	return mux
}

func startServer(addr string, model ModelInterface, statuses []StatusInterface) {
	srv := NewServer(model, statuses)
	log.Info().Str("addr", addr).Msg("Starting metrics server")
	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}

var tracer = otel.Tracer("tessera-server")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, st := range s.statuses {
		if err := st.Err(); err != nil {
			httpRequests.WithLabelValues("health", strconv.Itoa(http.StatusServiceUnavailable)).Inc()
			http.Error(w, "rank "+strconv.Itoa(st.Rank())+": "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	httpRequests.WithLabelValues("health", strconv.Itoa(http.StatusOK)).Inc()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handlePerfmodel(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "handlePerfmodel")
	defer span.End()

	if r.Method != http.MethodGet {
		httpRequests.WithLabelValues("perfmodel", strconv.Itoa(http.StatusMethodNotAllowed)).Inc()
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records := s.model.Snapshot()
	span.SetAttributes(attribute.Int("buckets", len(records)))

	data, err := cbor.Marshal(records)
	if err != nil {
		span.RecordError(err)
		httpRequests.WithLabelValues("perfmodel", strconv.Itoa(http.StatusInternalServerError)).Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	httpRequests.WithLabelValues("perfmodel", strconv.Itoa(http.StatusOK)).Inc()
	w.Header().Set("Content-Type", "application/cbor")
	_, _ = w.Write(data)
}
