package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		reconcilesTotal,
		reconcileDuration,
	)
}

var (
	// kind: checkout_completed|checkout_expired|payment_succeeded|payment_failed|unknown
	// result: accepted|rejected
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Provider webhook deliveries by event kind and acceptance result.",
		},
		[]string{"kind", "result"},
	)

	reconcilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciles_total",
			Help: "Reconciliation attempts by outcome (ok/error).",
		},
		[]string{"result"},
	)

	reconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Duration of one reconciliation attempt in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
)

func IncWebhookEvent(kind, result string) {
	webhookEventsTotal.WithLabelValues(norm(kind), norm(result)).Inc()
}

func IncReconcile(result string) {
	reconcilesTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveReconcileDuration(seconds float64) {
	reconcileDuration.Observe(seconds)
}
