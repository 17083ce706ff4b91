package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "tank_remaining_liters",
			Help: "Persisted remaining liters in the tank",
		},
		func() float64 {
			return queryValue(db, logger, "SELECT remaining_liters FROM tank_state WHERE id = 1")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "tank_capacity_liters",
			Help: "Persisted tank capacity in liters",
		},
		func() float64 {
			return queryValue(db, logger, "SELECT capacity_liters FROM tank_state WHERE id = 1")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "orders_pending",
			Help: "Orders awaiting a payment outcome",
		},
		func() float64 {
			return queryValue(db, logger, "SELECT COUNT(*) FROM orders WHERE state = 'pending'")
		},
	))
}

func queryValue(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var value float64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if value < 0 {
		return 0
	}
	return value
}
