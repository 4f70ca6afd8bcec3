// Package metrics exposes prometheus collectors for dagsync components.
//
// Components declare their collectors with the helpers of this package, so all metrics share
// the same namespace. Collectors are registered explicitly on a registry, which is served over
// http by the serve command.
package metrics

import (
	"net/http"

	"github.com/docker/go-units"
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

const (
	// Namespace of all dagsync metrics
	Namespace = "dagsync"

	// KB stands for kilo bytes (1024 bytes)
	KB = units.KiB

	// MB stands for mega bytes (1024 kilo bytes)
	MB = units.MiB

	// GB stands for giga bytes (1024 mega bytes)
	GB = units.GiB
)

// NewCounter declares a counter in the dagsync namespace
func NewCounter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

// NewCounterVec declares a counter with labels in the dagsync namespace
func NewCounterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewHistogram declares a duration histogram in seconds, in the dagsync namespace
func NewHistogram(subsystem, name, help string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
	})
}

// NewRegistry builds a registry for dagsync collectors
func NewRegistry(opts ...Option) *prometheus.Registry {
	s := defaultSettings()
	for _, apply := range opts {
		apply(s)
	}

	reg := prometheus.NewRegistry()
	if s.runtime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return reg
}

// Register collectors on a registerer.
//
// Collectors already registered are skipped, so a component may be registered several times.
func Register(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	var err error
	for _, c := range cs {
		if e := reg.Register(c); e != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(e, &already) {
				continue
			}
			err = multierr.Append(err, e)
		}
	}
	return err
}

// Handler serves the metrics of a registry
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
