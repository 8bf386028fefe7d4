package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fleet"

// Result labels
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the Prometheus collectors of the service
type Metrics struct {
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	mutations         *prometheus.CounterVec
	mutationDuration  *prometheus.HistogramVec
	messagesProcessed *prometheus.CounterVec
	eventsProjected   *prometheus.CounterVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Mutations by entity, operation and result kind.",
		}, []string{"entity", "operation", "result"}),
		mutationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_duration_seconds",
			Help:      "Mutation latency including the transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "operation"}),
		messagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Service Bus commands processed by event type and result.",
		}, []string{"event_type", "result"}),
		eventsProjected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_projected_total",
			Help:      "Outbox events indexed into Elasticsearch.",
		}, []string{"event_type", "result"}),
	}
}

// RecordHTTPRequest records one served request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveMutation records the outcome of a command handler mutation
func (m *Metrics) ObserveMutation(entity, operation, result string, d time.Duration) {
	m.mutations.WithLabelValues(entity, operation, result).Inc()
	m.mutationDuration.WithLabelValues(entity, operation).Observe(d.Seconds())
}

// RecordMessage records one processed Service Bus command
func (m *Metrics) RecordMessage(eventType string, err error) {
	m.messagesProcessed.WithLabelValues(eventType, result(err)).Inc()
}

// RecordProjection records one projected outbox event
func (m *Metrics) RecordProjection(eventType string, err error) {
	m.eventsProjected.WithLabelValues(eventType, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
