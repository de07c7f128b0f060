package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattva_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sattva_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PaymentOrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattva_payment_orders_total",
			Help: "Payment orders by resulting status",
		},
		[]string{"status"},
	)

	PaymentVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattva_payment_verifications_total",
			Help: "Payment verifications by outcome (confirmed, duplicate, signature_mismatch, error)",
		},
		[]string{"source", "outcome"},
	)

	WalletMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattva_wallet_mutations_total",
			Help: "Wallet ledger writes by type and outcome (applied, duplicate, insufficient)",
		},
		[]string{"type", "outcome"},
	)

	WalletAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattva_wallet_amount_total",
			Help: "Sum of applied wallet amounts in minor units",
		},
		[]string{"type", "category"},
	)

	WalletShortfallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sattva_wallet_shortfalls_total",
			Help: "Debit requests rejected for insufficient balance",
		},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattva_bookings_total",
			Help: "Booking lifecycle transitions",
		},
		[]string{"kind", "status"},
	)

	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattva_reconcile_orders_total",
			Help: "Orders examined by the reconciler, by result",
		},
		[]string{"result"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattva_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattva_email_queue_length",
			Help: "Current length of email queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordPaymentOrder(status string) {
	PaymentOrdersTotal.WithLabelValues(status).Inc()
}

func RecordVerification(source, outcome string) {
	PaymentVerificationsTotal.WithLabelValues(source, outcome).Inc()
}

func RecordWalletMutation(txType, category, outcome string, amount int64) {
	WalletMutationsTotal.WithLabelValues(txType, outcome).Inc()
	if outcome == "applied" {
		WalletAmountTotal.WithLabelValues(txType, category).Add(float64(amount))
	}
}

func RecordShortfall() {
	WalletShortfallsTotal.Inc()
}

func RecordBooking(kind, status string) {
	BookingsTotal.WithLabelValues(kind, status).Inc()
}

func RecordReconcile(result string) {
	ReconcileRunsTotal.WithLabelValues(result).Inc()
}

func RecordEmail(status string) {
	EmailsSentTotal.WithLabelValues(status).Inc()
}
