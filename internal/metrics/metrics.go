// Package metrics exposes prometheus collectors for the bookkeeping engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PurchasesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glowbooks_purchases_processed_total",
		Help: "Purchases created or edited, including allocation and cash processing.",
	})

	TransactionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glowbooks_transactions_processed_total",
		Help: "Business transactions recorded, by type.",
	}, []string{"type"})

	InsufficientFundsRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glowbooks_insufficient_funds_rejections_total",
		Help: "Cash usages rejected because they exceeded the available business cash.",
	})

	RecalculationSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glowbooks_recalculation_sweeps_total",
		Help: "Full recalculation sweeps over stored purchases.",
	})
)

// Handler serves the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
