package extensions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsObserver exports manager lifecycle events as Prometheus
// metrics, labelled by manager name and key.
type MetricsObserver struct {
	creates          *prometheus.CounterVec
	borrows          *prometheus.CounterVec
	releases         *prometheus.CounterVec
	teardowns        *prometheus.CounterVec
	teardownFailures *prometheus.CounterVec
	live             *prometheus.GaugeVec
}

// NewMetricsObserver registers the observer's metrics with reg. A nil
// registerer falls back to the default one.
func NewMetricsObserver(reg prometheus.Registerer) *MetricsObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := []string{"manager", "key"}

	return &MetricsObserver{
		creates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispose",
			Name:      "resource_creations_total",
			Help:      "Number of underlying resource creations.",
		}, labels),
		borrows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispose",
			Name:      "borrows_total",
			Help:      "Number of borrows handed out.",
		}, labels),
		releases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispose",
			Name:      "releases_total",
			Help:      "Number of releases, including the final one.",
		}, labels),
		teardowns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispose",
			Name:      "teardowns_total",
			Help:      "Number of zero-transition teardowns.",
		}, labels),
		teardownFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispose",
			Name:      "teardown_failures_total",
			Help:      "Number of teardowns that returned an error.",
		}, labels),
		live: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dispose",
			Name:      "live_resources",
			Help:      "Resources currently live per manager and key.",
		}, labels),
	}
}

// Creates returns the creation counter vector.
func (o *MetricsObserver) Creates() *prometheus.CounterVec { return o.creates }

// Borrows returns the borrow counter vector.
func (o *MetricsObserver) Borrows() *prometheus.CounterVec { return o.borrows }

// Releases returns the release counter vector.
func (o *MetricsObserver) Releases() *prometheus.CounterVec { return o.releases }

// Teardowns returns the teardown counter vector.
func (o *MetricsObserver) Teardowns() *prometheus.CounterVec { return o.teardowns }

// TeardownFailures returns the teardown failure counter vector.
func (o *MetricsObserver) TeardownFailures() *prometheus.CounterVec { return o.teardownFailures }

// Live returns the live resource gauge vector.
func (o *MetricsObserver) Live() *prometheus.GaugeVec { return o.live }

func (o *MetricsObserver) OnCreate(manager, key string) {
	o.creates.WithLabelValues(manager, key).Inc()
	o.live.WithLabelValues(manager, key).Inc()
}

func (o *MetricsObserver) OnBorrow(manager, key string, _ int) {
	o.borrows.WithLabelValues(manager, key).Inc()
}

func (o *MetricsObserver) OnRelease(manager, key string, _ int) {
	o.releases.WithLabelValues(manager, key).Inc()
}

func (o *MetricsObserver) OnTeardown(manager, key string, err error) {
	o.releases.WithLabelValues(manager, key).Inc()
	o.teardowns.WithLabelValues(manager, key).Inc()
	o.live.WithLabelValues(manager, key).Dec()
	if err != nil {
		o.teardownFailures.WithLabelValues(manager, key).Inc()
	}
}
