// Package metrics owns the Prometheus collectors. Every method is safe on a
// nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventboard"

type Metrics struct {
	registry *prometheus.Registry

	dispatches    *prometheus.CounterVec
	listSize      prometheus.Gauge
	storeWrites   *prometheus.CounterVec
	remoteFetches *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	published     *prometheus.CounterVec
	mirrored      *prometheus.CounterVec
}

// New registers every collector on a fresh registry, plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Actions applied to the event list, by action type.",
		}, []string{"action"}),
		listSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events",
			Help:      "Number of records in the event list.",
		}),
		storeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Writes of store state to durable storage, by result.",
		}, []string{"key", "result"}),
		remoteFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_fetches_total",
			Help:      "Remote record fetches, by outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups, by cache and result.",
		}, []string{"cache", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_messages_total",
			Help:      "Change notifications published, by result.",
		}, []string{"result"}),
		mirrored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_runs_total",
			Help:      "Mirror exports run by the worker, by trigger and result.",
		}, []string{"trigger", "result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.dispatches, m.listSize, m.storeWrites, m.remoteFetches,
		m.cacheLookups, m.httpRequests, m.httpDuration, m.published, m.mirrored,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Dispatched(action string, size int) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(action).Inc()
	m.listSize.Set(float64(size))
}

func (m *Metrics) StoreWrite(key string, err error) {
	if m == nil {
		return
	}
	m.storeWrites.WithLabelValues(key, result(err)).Inc()
}

func (m *Metrics) RemoteFetch(outcome string) {
	if m == nil {
		return
	}
	m.remoteFetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	r := "miss"
	if hit {
		r = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, r).Inc()
}

func (m *Metrics) HTTPRequest(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) Published(err error) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Mirrored(trigger string, err error) {
	if m == nil {
		return
	}
	m.mirrored.WithLabelValues(trigger, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
