package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records the billing and campaign counters exported at /metrics.
type Metrics struct {
	requestDuration   *prometheus.HistogramVec
	webhookEvents     *prometheus.CounterVec
	invoicesIssued    *prometheus.CounterVec
	allocationRetries prometheus.Counter
	campaignSends     *prometheus.CounterVec
}

// New registers the service metrics on the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Processed payment webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	invoicesIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoices_issued_total",
		Help: "Invoices issued by type.",
	}, []string{"type"})
	allocationRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invoice_number_allocation_retries_total",
		Help: "Invoice number allocations retried after a uniqueness collision.",
	})
	campaignSends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_emails_total",
		Help: "Campaign emails attempted by outcome.",
	}, []string{"outcome"})

	reg.MustRegister(requestDuration, webhookEvents, invoicesIssued, allocationRetries, campaignSends)

	return &Metrics{
		requestDuration:   requestDuration,
		webhookEvents:     webhookEvents,
		invoicesIssued:    invoicesIssued,
		allocationRetries: allocationRetries,
		campaignSends:     campaignSends,
	}
}

// ObserveRequest records one HTTP request observation.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

// IncWebhookEvent counts one processed webhook event.
func (m *Metrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncInvoiceIssued counts one issued invoice.
func (m *Metrics) IncInvoiceIssued(invoiceType string) {
	if m == nil || m.invoicesIssued == nil {
		return
	}
	m.invoicesIssued.WithLabelValues(normalizeLabel(invoiceType)).Inc()
}

// IncAllocationRetry counts a retried invoice number allocation.
func (m *Metrics) IncAllocationRetry() {
	if m == nil || m.allocationRetries == nil {
		return
	}
	m.allocationRetries.Inc()
}

// IncCampaignSend counts one campaign email attempt.
func (m *Metrics) IncCampaignSend(outcome string) {
	if m == nil || m.campaignSends == nil {
		return
	}
	m.campaignSends.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
