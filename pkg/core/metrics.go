package core

import (
	"github.com/oneconcern/dagsync/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "sync"

// Metrics collects counters about sync sessions and responder activity.
//
// A nil *Metrics is valid and collects nothing.
type Metrics struct {
	Sessions         *prometheus.CounterVec
	RoundTrips       *prometheus.CounterVec
	Deepenings       prometheus.Counter
	NodesTransferred *prometheus.CounterVec
	BlobsTransferred *prometheus.CounterVec
	Requests         *prometheus.CounterVec
	Duration         prometheus.Histogram
}

// NewMetrics declares the collectors of the core package
func NewMetrics() *Metrics {
	return &Metrics{
		Sessions:         metrics.NewCounterVec(subsystem, "sessions_total", "sync sessions, per direction and outcome", "direction", "outcome"),
		RoundTrips:       metrics.NewCounterVec(subsystem, "round_trips_total", "remote exchanges, per phase", "phase"),
		Deepenings:       metrics.NewCounter(subsystem, "deepenings_total", "fragment deepenings caused by a missing fringe"),
		NodesTransferred: metrics.NewCounterVec(subsystem, "nodes_transferred_total", "nodes stored by the receiving side", "direction"),
		BlobsTransferred: metrics.NewCounterVec(subsystem, "blobs_transferred_total", "blobs stored by the receiving side", "direction"),
		Requests:         metrics.NewCounterVec(subsystem, "requests_total", "requests served by the responder", "message", "outcome"),
		Duration:         metrics.NewHistogram(subsystem, "session_duration_seconds", "duration of committed sync sessions"),
	}
}

// Collectors yields all collectors, for registration
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{
		m.Sessions, m.RoundTrips, m.Deepenings, m.NodesTransferred, m.BlobsTransferred, m.Requests, m.Duration,
	}
}

func (m *Metrics) session(direction Direction, err error) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(direction.String(), outcome(err)).Inc()
}

func (m *Metrics) roundTrip(phase string) {
	if m == nil {
		return
	}
	m.RoundTrips.WithLabelValues(phase).Inc()
}

func (m *Metrics) deepening() {
	if m == nil {
		return
	}
	m.Deepenings.Inc()
}

func (m *Metrics) transferred(direction Direction, stats *Stats) {
	if m == nil {
		return
	}
	m.NodesTransferred.WithLabelValues(direction.String()).Add(float64(stats.NodesTransferred))
	m.BlobsTransferred.WithLabelValues(direction.String()).Add(float64(stats.BlobsTransferred))
	m.Duration.Observe(stats.Duration.Seconds())
}

func (m *Metrics) request(message string, err error) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(message, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
