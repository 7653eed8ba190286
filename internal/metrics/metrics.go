// Package metrics registers the Prometheus instrumentation for the agent.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	CyclesTotal      prometheus.Counter
	CycleOutcomes    *prometheus.CounterVec // labels: outcome
	OrdersSubmitted  *prometheus.CounterVec // labels: side
	StreamReconnects prometheus.Counter
	TradeUpdates     prometheus.Counter
	CycleDuration    prometheus.Histogram
	RSI              prometheus.Gauge
	Holding          prometheus.Gauge // 0=flat, 1=holding
}

// New registers and returns all metrics.
func New() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsibot_cycles_total",
			Help: "Total decision cycles executed",
		}),
		CycleOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsibot_cycle_outcomes_total",
			Help: "Cycle outcomes by kind (no_signal, order_submitted, failed)",
		}, []string{"outcome"}),
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsibot_orders_submitted_total",
			Help: "Orders accepted by the broker, by side",
		}, []string{"side"}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsibot_stream_reconnects_total",
			Help: "Trade update stream reconnection attempts",
		}),
		TradeUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsibot_trade_updates_total",
			Help: "Trade updates appended to the ledger",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsibot_cycle_duration_seconds",
			Help:    "Decision cycle wall time",
			Buckets: prometheus.DefBuckets,
		}),
		RSI: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rsibot_rsi",
			Help: "Last computed RSI value",
		}),
		Holding: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rsibot_holding",
			Help: "Whether the account currently holds the traded symbol (0 or 1)",
		}),
	}

	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleOutcomes,
		m.OrdersSubmitted,
		m.StreamReconnects,
		m.TradeUpdates,
		m.CycleDuration,
		m.RSI,
		m.Holding,
	)

	return m
}
