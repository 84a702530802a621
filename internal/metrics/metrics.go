// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nowastemate"

// Transition labels.
const (
	TransitionPosted    = "posted"
	TransitionClaimed   = "claimed"
	TransitionCompleted = "completed"
	TransitionReviewed  = "reviewed"
)

// Email result labels.
const (
	EmailSent    = "sent"
	EmailFailed  = "failed"
	EmailDropped = "dropped"
)

var (
	// Registry holds the application collectors. The default global
	// registry is not used.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "route"})

	transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "donations",
		Name:      "transitions_total",
		Help:      "Donation lifecycle events by kind.",
	}, []string{"transition"})

	emails = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mail",
		Name:      "messages_total",
		Help:      "Outbound emails by result.",
	}, []string{"result"})

	notifications = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "created_total",
		Help:      "In-app notifications created.",
	})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		transitions,
		emails,
		notifications,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RequestStarted marks a request in flight and returns the func that ends it.
func RequestStarted() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// ObserveHTTP records one finished request. route must be a route pattern,
// not the raw path, to keep label cardinality bounded.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordTransition(kind string) {
	transitions.WithLabelValues(kind).Inc()
}

func RecordEmail(result string) {
	emails.WithLabelValues(result).Inc()
}

func AddNotifications(n int) {
	if n > 0 {
		notifications.Add(float64(n))
	}
}
