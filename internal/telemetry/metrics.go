// Package telemetry exposes Prometheus metrics for business-level
// observability of the booking funnel and webhook pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
type BusinessMetrics struct {
	// Booking funnel
	BookingsCreated *prometheus.CounterVec
	BookingValue    *prometheus.HistogramVec

	// Payments
	PaymentSucceeded *prometheus.CounterVec
	PaymentFailed    *prometheus.CounterVec
	RevenueCollected *prometheus.CounterVec
	RefundsIssued    *prometheus.CounterVec

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Email delivery
	EmailSent   *prometheus.CounterVec
	EmailFailed *prometheus.CounterVec

	// External booking-system sync
	SyncPushed  *prometheus.CounterVec
	SyncSkipped *prometheus.CounterVec
	SyncFailed  *prometheus.CounterVec
}

// Business is the process-wide metrics instance. Nil until Init is called,
// so library code guards with `if telemetry.Business != nil`.
var Business *BusinessMetrics

// Init registers all business metrics with the default registry.
func Init() *BusinessMetrics {
	Business = &BusinessMetrics{
		BookingsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_bookings_created_total",
			Help: "Bookings created, by package",
		}, []string{"package"}),

		BookingValue: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canopy_booking_value_baht",
			Help:    "Booking total amounts in THB",
			Buckets: []float64{500, 1000, 2000, 4000, 8000, 16000, 32000},
		}, []string{"package"}),

		PaymentSucceeded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_payment_succeeded_total",
			Help: "Successful payments reconciled from webhook events",
		}, []string{"event_type"}),

		PaymentFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_payment_failed_total",
			Help: "Failed payments reconciled from webhook events",
		}, []string{"reason"}),

		RevenueCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_revenue_collected_baht_total",
			Help: "Revenue from confirmed bookings in THB",
		}, []string{"package"}),

		RefundsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_refunds_issued_total",
			Help: "Refund events applied to bookings",
		}, []string{"package"}),

		WebhookReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_webhook_received_total",
			Help: "Webhook events received, by type",
		}, []string{"event_type"}),

		WebhookProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_webhook_processed_total",
			Help: "Webhook events processed successfully, by type",
		}, []string{"event_type"}),

		WebhookFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_webhook_failed_total",
			Help: "Webhook events that failed processing, by type and reason",
		}, []string{"event_type", "reason"}),

		WebhookLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canopy_webhook_duration_seconds",
			Help:    "Webhook processing duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"event_type"}),

		EmailSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_email_sent_total",
			Help: "Emails sent, by kind",
		}, []string{"kind"}),

		EmailFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_email_failed_total",
			Help: "Email sends that failed, by kind",
		}, []string{"kind"}),

		SyncPushed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_sync_pushed_total",
			Help: "Bookings pushed to the external booking system",
		}, []string{"event_kind"}),

		SyncSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_sync_skipped_total",
			Help: "Bookings skipped as duplicates by the external booking system",
		}, []string{"event_kind"}),

		SyncFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_sync_failed_total",
			Help: "Bookings the external booking system rejected",
		}, []string{"event_kind"}),
	}

	return Business
}
