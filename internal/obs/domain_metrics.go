package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// RoomRecalcTotal counts room total recomputations.
	RoomRecalcTotal prometheus.Counter
	// QuotationRecalcTotal counts quotation total recomputations.
	QuotationRecalcTotal prometheus.Counter
	// RecalcDuration records recompute latency in milliseconds per cascade level.
	RecalcDuration *prometheus.HistogramVec
	// WebhookDeliveriesTotal tracks webhook dispatch outcomes.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// InvoiceIssuedTotal counts invoices issued from sales orders.
	InvoiceIssuedTotal prometheus.Counter
	// PaymentRecordedTotal counts payments recorded against invoices.
	PaymentRecordedTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		RoomRecalcTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_recalc_total",
			Help:      "Number of room total recomputations.",
		})
		QuotationRecalcTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotation_recalc_total",
			Help:      "Number of quotation total recomputations.",
		})
		RecalcDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recalc_duration_ms",
			Help:      "Latency of aggregate recomputation in milliseconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"level"})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of webhook delivery outcomes.",
		}, []string{"result"})
		InvoiceIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_issued_total",
			Help:      "Number of invoices issued.",
		})
		PaymentRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_recorded_total",
			Help:      "Number of payments recorded.",
		})

		mustRegisterCollector(reg, RoomRecalcTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				RoomRecalcTotal = v
			}
		})
		mustRegisterCollector(reg, QuotationRecalcTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				QuotationRecalcTotal = v
			}
		})
		mustRegisterCollector(reg, RecalcDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				RecalcDuration = v
			}
		})
		mustRegisterCollector(reg, WebhookDeliveriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookDeliveriesTotal = v
			}
		})
		mustRegisterCollector(reg, InvoiceIssuedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				InvoiceIssuedTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentRecordedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PaymentRecordedTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
