// Package metrics holds the Prometheus instruments shared by the track
// pipelines, receivers and storage workers, and the HTTP endpoint serving them.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "routemonitor"

var (
	DatagramsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "datagrams_received",
		Help:      "The number of datagrams read from a pipeline's socket",
	}, []string{"role"})
	DatagramsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "datagrams_dropped",
		Help:      "The number of datagrams dropped because the pipeline queue was full",
	}, []string{"role"})
	SamplesMalformed = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "samples_malformed",
		Help:      "The number of datagrams too short to decode",
	}, []string{"role"})
	SamplesAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "samples_accepted",
		Help:      "The number of samples appended to a trace",
	}, []string{"role"})
	RenderSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "render_suppressed",
		Help:      "The number of samples not rendered because motion was disabled",
	}, []string{"role"})
	TraceResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "trace_resets",
		Help:      "The number of times a trace overflowed",
	}, []string{"role"})
	TraceLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      "trace_length",
		Help:      "The current number of points in a trace",
	}, []string{"role"})
	TraceDistance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: subsystem,
		Name:      "trace_distance",
		Help:      "The length of the published line-strip in working-frame units",
	}, []string{"role"})
	GeometryPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "geometry_published",
		Help:      "The number of line-strip rebuilds attached to the scene",
	}, []string{"role"})
	StorageWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "storage_writes",
		Help:      "The number of records written to storage backends",
	}, []string{"kind"})
	StorageErrors = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "storage_errors",
		Help:      "The number of failed storage writes",
	})
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
