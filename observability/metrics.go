package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"creditledger/events"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Metrics holds the Prometheus instruments of the service
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Ledger
	LedgerEntriesTotal      *prometheus.CounterVec
	LedgerCreditsMovedTotal *prometheus.CounterVec
	RefreshesTotal          prometheus.Counter
	RejectedDebitsTotal     *prometheus.CounterVec
	EventsTotal             *prometheus.CounterVec

	// Users
	UsersCreatedTotal prometheus.Counter
	UsersDeletedTotal prometheus.Counter
}

// NewMetrics registers every instrument on a fresh registry along with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPrefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{LabelMethod, LabelPath, LabelStatusCode},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricPrefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{LabelMethod, LabelPath, LabelStatusCode},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricPrefix + "_http_requests_in_flight",
				Help: "Number of HTTP requests currently being served",
			},
		),

		LedgerEntriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPrefix + "_ledger_entries_total",
				Help: "Total number of ledger entries written",
			},
			[]string{LabelTransactionType},
		),
		LedgerCreditsMovedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPrefix + "_ledger_credits_moved_total",
				Help: "Absolute credits moved by ledger entries",
			},
			[]string{LabelTransactionType},
		),
		RefreshesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: MetricPrefix + "_refreshes_total",
				Help: "Total number of free credit refreshes applied",
			},
		),
		RejectedDebitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPrefix + "_rejected_debits_total",
				Help: "Debits refused because the balance could not cover them",
			},
			[]string{LabelOperation},
		),
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPrefix + "_events_total",
				Help: "Committed domain events by type",
			},
			[]string{LabelEventType},
		),

		UsersCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: MetricPrefix + "_users_created_total",
				Help: "Users created through identity sync",
			},
		),
		UsersDeletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: MetricPrefix + "_users_deleted_total",
				Help: "Users deleted through identity sync",
			},
		),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Attach counts committed events from the bus
func (m *Metrics) Attach(bus *events.Bus) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		m.Observe(event)
	})
}

// Observe updates the instruments for one committed event
func (m *Metrics) Observe(event events.Event) {
	m.EventsTotal.WithLabelValues(string(event.Type())).Inc()

	switch e := event.(type) {
	case events.CreditBalanceChangedEvent:
		txType := string(e.TransactionType)
		m.LedgerEntriesTotal.WithLabelValues(txType).Inc()
		amount := e.Amount
		if amount < 0 {
			amount = -amount
		}
		m.LedgerCreditsMovedTotal.WithLabelValues(txType).Add(float64(amount))
	case events.CreditsRefreshedEvent:
		m.RefreshesTotal.Inc()
	case events.UserCreatedEvent:
		m.UsersCreatedTotal.Inc()
	case events.UserDeletedEvent:
		m.UsersDeletedTotal.Inc()
	default:
		log.WithField("eventType", event.Type()).Debug("No metrics for event type")
	}
}

// RejectedDebit counts a debit refused for insufficient credits
func (m *Metrics) RejectedDebit(operation string) {
	m.RejectedDebitsTotal.WithLabelValues(operation).Inc()
}

// GinMiddleware records request count and latency per route template
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
