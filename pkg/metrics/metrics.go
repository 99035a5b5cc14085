package metrics

import (
	"errors"
	"net/http"
	"time"

	"clusterdash/pkg/dispatcher"
	"clusterdash/pkg/reader"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clusterdash"

// Reporter exposes refresh outcomes and the displayed utilization as Prometheus metrics.
type Reporter struct {
	registry        *prometheus.Registry
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	lastSuccess     prometheus.Gauge
	snapshotID      prometheus.Gauge
	clusterUsed     *prometheus.GaugeVec
	clusterFree     *prometheus.GaugeVec
}

var _ dispatcher.Listener = (*Reporter)(nil)

// NewReporter creates a reporter with its own registry.
func NewReporter() *Reporter {
	r := &Reporter{
		registry: prometheus.NewRegistry(),
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_total",
				Help:      "Refresh attempts by result",
			}, []string{"result"}),
		refreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_duration_seconds",
				Help:      "Duration of snapshot reads",
				Buckets:   prometheus.DefBuckets,
			}),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful refresh",
			}),
		snapshotID: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_id",
				Help:      "Id of the displayed snapshot",
			}),
		clusterUsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cluster_used",
				Help:      "Allocated capacity currently displayed",
			}, []string{"cluster"}),
		clusterFree: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cluster_free",
				Help:      "Free capacity currently displayed",
			}, []string{"cluster"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.refreshTotal,
		r.refreshDuration,
		r.lastSuccess,
		r.snapshotID,
		r.clusterUsed,
		r.clusterFree,
	)

	return r
}

// Registry returns the underlying registry.
func (r *Reporter) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (r *Reporter) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RefreshSucceeded records a published frame.
func (r *Reporter) RefreshSucceeded(frame *dispatcher.Frame, elapsed time.Duration) {
	r.refreshTotal.WithLabelValues("success").Inc()
	r.refreshDuration.Observe(elapsed.Seconds())
	r.lastSuccess.Set(float64(frame.State.RefreshedAt.Unix()))
	r.snapshotID.Set(float64(frame.State.SnapshotID))

	for name, pair := range frame.State.Pairs {
		r.clusterUsed.WithLabelValues(string(name)).Set(float64(pair.Used))
		r.clusterFree.WithLabelValues(string(name)).Set(float64(pair.Free))
	}
}

// RefreshFailed records a failed attempt, labelled by failure kind.
func (r *Reporter) RefreshFailed(err error, elapsed time.Duration) {
	r.refreshTotal.WithLabelValues(resultLabel(err)).Inc()
	r.refreshDuration.Observe(elapsed.Seconds())
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, reader.ErrMalformedRecord):
		return "malformed"
	case errors.Is(err, reader.ErrDataUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
