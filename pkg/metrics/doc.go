/*
Package metrics provides Prometheus metrics collection and exposition for
storebroker.

The metrics package defines and registers every storebroker metric using
the Prometheus client library: store topology, mutation throughput,
expiry-tick behavior, clone resync activity, frontend request latency,
and proxy mailbox depth. Metrics are exposed via an HTTP endpoint for
scraping by a Prometheus server.

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Thread-safe for concurrent updates from many store actors

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to a histogram (optionally labeled)

Collector:
  - Polls a StatsProvider (normally the store actor registry) on an
    interval and republishes per-store gauges, the same ticker-driven
    polling shape pkg/reconciler used for cluster state

# Metrics Catalog

storebroker_stores_total{role}:
  - Type: Gauge
  - Description: Attached stores by role (master/clone)

storebroker_store_entries_total{store, role}:
  - Type: Gauge
  - Description: Current entry count for a store

storebroker_store_seq{store, role}:
  - Type: Gauge
  - Description: Last applied/emitted command sequence number

storebroker_mutations_total{store, op}:
  - Type: Counter
  - Description: Successful mutations by operation (put, add, subtract, erase, clear, put_unique)

storebroker_mutation_failures_total{store, op, kind}:
  - Type: Counter
  - Description: Failed mutations labeled with the storeerr kind

storebroker_tick_scan_duration_seconds{store}:
  - Type: Histogram
  - Description: Duration of one master expiry-tick scan

storebroker_expired_entries_total{store}:
  - Type: Counter
  - Description: Entries removed by expiry ticks

storebroker_clone_gaps_total{store, clone}:
  - Type: Counter
  - Description: Sequence gaps observed by a clone (each triggers a resync)

storebroker_clone_resyncs_total{store, clone}:
  - Type: Counter
  - Description: Snapshot resyncs completed by a clone

storebroker_request_duration_seconds{op}:
  - Type: Histogram
  - Description: Frontend synchronous request duration

storebroker_request_timeouts_total{store, op}:
  - Type: Counter
  - Description: Frontend requests that exceeded their deadline

storebroker_proxy_mailbox_depth{store}:
  - Type: Gauge
  - Description: Responses currently queued in a proxy mailbox

storebroker_events_published_total{store, kind}:
  - Type: Counter
  - Description: Events published per event kind (insert/update/erase/expire/warning)

# Usage

	timer := metrics.NewTimer()
	err := backend.Put(ctx, key, val, expiry)
	timer.ObserveDurationVec(metrics.RequestDuration, "put")
	if err != nil {
		metrics.MutationFailuresTotal.WithLabelValues(storeName, "put", kindOf(err)).Inc()
		return err
	}
	metrics.MutationsTotal.WithLabelValues(storeName, "put").Inc()

	http.Handle("/metrics", metrics.Handler())

# Integration Points

This package integrates with:

  - pkg/storeactor: mutation counters, tick-scan histogram, clone gap/resync counters
  - pkg/frontend: request duration and timeout counters
  - pkg/proxy: mailbox depth gauge
  - pkg/events: events-published counter
  - cmd/storebroker: mounts Handler() on /metrics

# Design Patterns

Package Init Registration:
  - All metrics registered in init(); MustRegister panics on duplicate
    registration, so this package must be imported exactly once per binary

Label Discipline:
  - store/role/op/kind are bounded-cardinality labels; never label with
    request ids, keys, or values

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
