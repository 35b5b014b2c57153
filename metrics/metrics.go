// Package metrics exposes Prometheus counters for the issue workflow and the
// HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the service layer and middlewares report to.
type Recorder interface {
	IssueCreated(severity string)
	IssueResolved()
	ResolveConflict()
	XPAwarded(points int)
	ObserveRequest(method, route string, status int, took time.Duration)
}

type Collector struct {
	issuesCreated   *prometheus.CounterVec
	issuesResolved  prometheus.Counter
	resolveConflict prometheus.Counter
	xpAwarded       prometheus.Counter
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// NewCollector registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		issuesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civichero_issues_created_total",
			Help: "Issues reported, by severity.",
		}, []string{"severity"}),
		issuesResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civichero_issues_resolved_total",
			Help: "Issues moved from pending to solved.",
		}),
		resolveConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civichero_resolve_conflicts_total",
			Help: "Resolve attempts rejected because the issue was already solved.",
		}),
		xpAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civichero_xp_awarded_total",
			Help: "Experience points granted to NGOs.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civichero_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civichero_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.issuesCreated,
		c.issuesResolved,
		c.resolveConflict,
		c.xpAwarded,
		c.requests,
		c.latency,
	)
	return c
}

func (c *Collector) IssueCreated(severity string) {
	c.issuesCreated.WithLabelValues(severity).Inc()
}

func (c *Collector) IssueResolved() {
	c.issuesResolved.Inc()
}

func (c *Collector) ResolveConflict() {
	c.resolveConflict.Inc()
}

func (c *Collector) XPAwarded(points int) {
	c.xpAwarded.Add(float64(points))
}

func (c *Collector) ObserveRequest(method, route string, status int, took time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(took.Seconds())
}

// Handler serves the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) IssueCreated(string) {}
func (Nop) IssueResolved() {}
func (Nop) ResolveConflict() {}
func (Nop) XPAwarded(int) {}
func (Nop) ObserveRequest(string, string, int, time.Duration) {}
