package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "watervend_"

	ResultSettled = "settled"
	ResultFailed  = "failed"
	ResultExpired = "expired"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ordersCreated         prometheus.Counter
	orderResults          *prometheus.CounterVec
	reservationRejections prometheus.Counter

	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec

	receiptsAppended prometheus.Counter
)

// Init registers metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ordersCreated = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "orders_created_total",
				Help: "Total orders created with a water reservation",
			},
		)
		orderResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "order_results_total",
				Help: "Total resolved orders by terminal state",
			},
			[]string{"result"},
		)
		reservationRejections = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "reservation_rejections_total",
				Help: "Total reservation attempts rejected for insufficient water",
			},
		)

		providerRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "provider_requests_total",
				Help: "Total payment provider calls by operation and result",
			},
			[]string{"op", "result"},
		)
		providerLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "provider_latency_seconds",
				Help:    "Payment provider call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		)

		receiptsAppended = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "receipts_appended_total",
				Help: "Total receipts written to the purchase history",
			},
		)

		prometheus.MustRegister(
			ordersCreated,
			orderResults,
			reservationRejections,
			providerRequests,
			providerLatency,
			receiptsAppended,
		)

		registerDBMetrics(db, logger)
	})
}

// IncOrderCreated counts a freshly created order.
func IncOrderCreated() {
	if ordersCreated != nil {
		ordersCreated.Inc()
	}
}

// IncOrderResult counts a terminal order transition.
func IncOrderResult(result string) {
	if orderResults != nil {
		orderResults.WithLabelValues(result).Inc()
	}
}

// IncReservationRejected counts an insufficient-water rejection.
func IncReservationRejected() {
	if reservationRejections != nil {
		reservationRejections.Inc()
	}
}

// IncReceiptAppended counts a receipt write.
func IncReceiptAppended() {
	if receiptsAppended != nil {
		receiptsAppended.Inc()
	}
}

// ObserveProviderCall records one provider round-trip.
func ObserveProviderCall(op string, err error, elapsed time.Duration) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if providerRequests != nil {
		providerRequests.WithLabelValues(op, result).Inc()
	}
	if providerLatency != nil {
		providerLatency.WithLabelValues(op).Observe(elapsed.Seconds())
	}
}
