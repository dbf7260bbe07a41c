// Package metrics exposes the agent's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersAllowed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictor_orders_allowed_total",
		Help: "Orders that passed the gate, by strategy and pipeline.",
	}, []string{"strategy", "pipeline"})

	OrdersDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictor_orders_denied_total",
		Help: "Gate denials by strategy and denial code.",
	}, []string{"strategy", "code"})

	OrdersFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictor_orders_failed_total",
		Help: "Orders whose execution returned an error.",
	}, []string{"strategy", "pipeline"})

	TradesSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictor_trades_settled_total",
		Help: "Settled trades by pipeline and result.",
	}, []string{"pipeline", "result"})

	Bankroll = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "predictor_bankroll_usd",
		Help: "Current bankroll per pipeline.",
	}, []string{"pipeline"})

	LedgerMode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "predictor_ledger_mode",
		Help: "Ledger mode per pipeline: 0 active, 1 soft-stopped, 2 hard-stopped.",
	}, []string{"pipeline"})
)

// ModeValue maps a ledger mode string to its gauge value.
func ModeValue(mode string) float64 {
	switch mode {
	case "SOFT_STOPPED":
		return 1
	case "HARD_STOPPED":
		return 2
	default:
		return 0
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
