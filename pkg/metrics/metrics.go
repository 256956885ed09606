package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StoresTotal counts attached store actors by role (master/clone).
	StoresTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storebroker_stores_total",
			Help: "Total number of attached stores by role",
		},
		[]string{"role"},
	)

	// StoreEntriesTotal is the live entry count per store.
	StoreEntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storebroker_store_entries_total",
			Help: "Current number of entries in a store",
		},
		[]string{"store", "role"},
	)

	// StoreSeq is the last applied/emitted command sequence number.
	StoreSeq = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storebroker_store_seq",
			Help: "Last applied command sequence number per store",
		},
		[]string{"store", "role"},
	)

	// MutationsTotal counts successful backend mutations by operation.
	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storebroker_mutations_total",
			Help: "Total successful store mutations by store and operation",
		},
		[]string{"store", "op"},
	)

	// MutationFailuresTotal counts mutations that returned an error kind.
	MutationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storebroker_mutation_failures_total",
			Help: "Total failed store mutations by store, operation, and error kind",
		},
		[]string{"store", "op", "kind"},
	)

	// TickScanDuration times one expiry-scan pass on a master.
	TickScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storebroker_tick_scan_duration_seconds",
			Help:    "Time taken for one expiry tick scan",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store"},
	)

	ExpiredEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storebroker_expired_entries_total",
			Help: "Total entries removed by an expiry tick",
		},
		[]string{"store"},
	)

	// CloneGapsTotal counts sequence gaps a clone observed.
	CloneGapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storebroker_clone_gaps_total",
			Help: "Total sequence gaps observed by a clone, triggering resync",
		},
		[]string{"store", "clone"},
	)

	CloneResyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storebroker_clone_resyncs_total",
			Help: "Total snapshot resyncs completed by a clone",
		},
		[]string{"store", "clone"},
	)

	// RequestDuration times frontend synchronous requests.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storebroker_request_duration_seconds",
			Help:    "Frontend synchronous request duration by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	RequestTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storebroker_request_timeouts_total",
			Help: "Total frontend requests that exceeded their deadline",
		},
		[]string{"store", "op"},
	)

	// ProxyMailboxDepth is the current number of undelivered responses
	// queued in a proxy's mailbox.
	ProxyMailboxDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storebroker_proxy_mailbox_depth",
			Help: "Current number of responses queued in a proxy mailbox",
		},
		[]string{"store"},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storebroker_events_published_total",
			Help: "Total store mutation events published by mutation kind",
		},
		[]string{"store", "kind"},
	)
)

func init() {
	prometheus.MustRegister(StoresTotal)
	prometheus.MustRegister(StoreEntriesTotal)
	prometheus.MustRegister(StoreSeq)
	prometheus.MustRegister(MutationsTotal)
	prometheus.MustRegister(MutationFailuresTotal)
	prometheus.MustRegister(TickScanDuration)
	prometheus.MustRegister(ExpiredEntriesTotal)
	prometheus.MustRegister(CloneGapsTotal)
	prometheus.MustRegister(CloneResyncsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(RequestTimeoutsTotal)
	prometheus.MustRegister(ProxyMailboxDepth)
	prometheus.MustRegister(EventsPublishedTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
