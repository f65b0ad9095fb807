// Package metrics holds the Prometheus collectors of the service and the
// server exposing them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ClaimsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campuscred_claims_submitted_total",
		Help: "Total number of claims submitted",
	})

	ClaimTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campuscred_claim_transitions_total",
		Help: "Lifecycle transitions by action and outcome",
	}, []string{"action", "outcome"})

	ChainTxDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campuscred_chain_tx_duration_seconds",
		Help:    "Time from transaction submission to confirmation",
		Buckets: []float64{1, 2.5, 5, 10, 15, 30, 60, 120},
	}, []string{"op", "outcome"})

	MetadataPublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campuscred_metadata_publish_duration_seconds",
		Help:    "Latency of metadata publishing",
		Buckets: prometheus.DefBuckets,
	}, []string{"publisher", "outcome"})

	VerifierLinks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campuscred_verifier_links_total",
		Help: "Disclosure link issuance and redemption",
	}, []string{"event"})
)

// Outcome maps an error to a metric label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveSince records the time elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// MetricsServer serves /metrics on its own listener.
type MetricsServer struct {
	srv *http.Server
}

func New(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
