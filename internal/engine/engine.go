// Package engine runs the decision cycle: pull recent bars, compute the RSI,
// reconcile holding state against the account, and submit at most one order
// when the threshold rule fires.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"rsibot/internal/broker"
	"rsibot/internal/config"
	"rsibot/internal/indicator"
	"rsibot/internal/md"
	"rsibot/internal/metrics"
	"rsibot/internal/position"
)

// BarSource is the market-data capability the engine consumes.
type BarSource interface {
	RecentBars(ctx context.Context, symbol string, lookback time.Duration) ([]md.Bar, error)
}

// HoldingChecker reconciles position state against the account.
type HoldingChecker interface {
	IsHolding(ctx context.Context) (bool, error)
}

// OrderPlacer submits orders to the broker.
type OrderPlacer interface {
	SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderReceipt, error)
}

type OutcomeKind string

const (
	NoSignal       OutcomeKind = "no_signal"
	OrderSubmitted OutcomeKind = "order_submitted"
	Failed         OutcomeKind = "failed"
)

// Outcome is the result of one decision cycle, exposed read-only to the
// display layer.
type Outcome struct {
	Kind     OutcomeKind          `json:"kind"`
	At       time.Time            `json:"at"`
	RSI      float64              `json:"rsi"`
	RSIValid bool                 `json:"rsi_valid"`
	Holding  bool                 `json:"holding"`
	Side     string               `json:"side,omitempty"`
	Order    *broker.OrderReceipt `json:"order,omitempty"`
	Reason   string               `json:"reason"`
}

type Engine struct {
	cfg       config.Config
	bars      BarSource
	positions HoldingChecker
	orders    OrderPlacer
	decisions *DecisionLogger
	metrics   *metrics.Metrics

	qty      decimal.Decimal
	tif      alpaca.TimeInForce
	runID    string
	orderSeq uint64

	mu   sync.RWMutex
	last Outcome
}

func New(cfg config.Config, bars BarSource, positions HoldingChecker, orders OrderPlacer, decisions *DecisionLogger) *Engine {
	tif := alpaca.GTC
	if cfg.TimeInForce == "day" {
		tif = alpaca.Day
	}
	return &Engine{
		cfg:       cfg,
		bars:      bars,
		positions: positions,
		orders:    orders,
		decisions: decisions,
		qty:       decimal.NewFromFloat(cfg.OrderQty),
		tif:       tif,
		runID:     decisions.RunID(),
	}
}

func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// RunCycle executes one decision cycle. It never panics the caller loop: any
// failure is folded into a Failed outcome and the next tick retries
// naturally.
func (e *Engine) RunCycle(ctx context.Context) Outcome {
	start := time.Now().UTC()
	outcome := e.evaluate(ctx)
	outcome.At = start

	e.record(outcome, time.Since(start))
	return outcome
}

// LastOutcome returns the most recent cycle outcome for the display layer.
func (e *Engine) LastOutcome() Outcome {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

func (e *Engine) evaluate(ctx context.Context) Outcome {
	bars, err := e.bars.RecentBars(ctx, e.cfg.Symbol, e.cfg.Lookback)
	if err != nil {
		return Outcome{Kind: Failed, Reason: reasonFor(err) + ": " + err.Error()}
	}

	series, err := indicator.Series(md.Closes(bars), e.cfg.RSIWindow)
	if err != nil {
		return Outcome{Kind: Failed, Reason: "indicator: " + err.Error()}
	}
	value, defined := indicator.Last(series)
	if !defined {
		// Too little history to trust the oscillator. Not an error: the
		// position query is skipped entirely and the next tick retries.
		return Outcome{Kind: NoSignal, Reason: "insufficient_history"}
	}

	holding, err := e.positions.IsHolding(ctx)
	if err != nil {
		// Unknown position state. Submitting here could double or invert
		// exposure, so the cycle fails with no order.
		return Outcome{Kind: Failed, RSI: value, RSIValid: true, Reason: reasonFor(err) + ": " + err.Error()}
	}

	outcome := Outcome{RSI: value, RSIValid: true, Holding: holding}

	var side alpaca.Side
	switch {
	case value <= e.cfg.LowerThreshold && !holding:
		side = alpaca.Buy
	case value >= e.cfg.UpperThreshold && holding:
		side = alpaca.Sell
	default:
		outcome.Kind = NoSignal
		outcome.Reason = noSignalReason(value, holding, e.cfg)
		return outcome
	}

	if e.cfg.KillSwitch {
		outcome.Kind = NoSignal
		outcome.Side = string(side)
		outcome.Reason = "kill_switch_enabled"
		return outcome
	}

	req := broker.OrderRequest{
		Symbol:        e.cfg.Symbol,
		Side:          side,
		Qty:           e.qty,
		TimeInForce:   e.tif,
		ClientOrderID: e.nextClientOrderID(),
	}
	receipt, err := e.orders.SubmitOrder(ctx, req)
	if err != nil {
		// Best effort: no retry within this tick. If signal and state still
		// warrant it, the next tick resubmits.
		outcome.Kind = Failed
		outcome.Side = string(side)
		outcome.Reason = reasonFor(err) + ": " + err.Error()
		return outcome
	}

	outcome.Kind = OrderSubmitted
	outcome.Side = string(side)
	outcome.Order = &receipt
	outcome.Reason = signalReason(side)
	return outcome
}

func (e *Engine) record(outcome Outcome, elapsed time.Duration) {
	e.mu.Lock()
	e.last = outcome
	e.mu.Unlock()

	e.decisions.Append(Decision{
		RunID:     e.runID,
		Timestamp: outcome.At,
		Symbol:    e.cfg.Symbol,
		RSI:       outcome.RSI,
		RSIValid:  outcome.RSIValid,
		Holding:   outcome.Holding,
		Outcome:   string(outcome.Kind),
		Side:      outcome.Side,
		Reason:    outcome.Reason,
		OrderID:   orderID(outcome.Order),
	})

	if e.metrics != nil {
		e.metrics.CyclesTotal.Inc()
		e.metrics.CycleOutcomes.WithLabelValues(string(outcome.Kind)).Inc()
		e.metrics.CycleDuration.Observe(elapsed.Seconds())
		if outcome.RSIValid {
			e.metrics.RSI.Set(outcome.RSI)
		}
		if outcome.Kind == OrderSubmitted {
			e.metrics.OrdersSubmitted.WithLabelValues(outcome.Side).Inc()
		}
		if outcome.Kind != Failed {
			holding := 0.0
			if outcome.Holding {
				holding = 1
			}
			e.metrics.Holding.Set(holding)
		}
	}

	slog.Info("cycle complete",
		"outcome", outcome.Kind, "rsi", outcome.RSI, "rsi_valid", outcome.RSIValid,
		"holding", outcome.Holding, "side", outcome.Side, "reason", outcome.Reason,
		"elapsed", elapsed)
}

func (e *Engine) nextClientOrderID() string {
	seq := atomic.AddUint64(&e.orderSeq, 1)
	return fmt.Sprintf("%s-%d", e.runID, seq)
}

func noSignalReason(value float64, holding bool, cfg config.Config) string {
	switch {
	case value <= cfg.LowerThreshold && holding:
		// Oversold but already long: acting again would double exposure.
		return "already_holding"
	case value >= cfg.UpperThreshold && !holding:
		return "nothing_to_sell"
	default:
		return "within_thresholds"
	}
}

func signalReason(side alpaca.Side) string {
	if side == alpaca.Buy {
		return "oversold_entry"
	}
	return "overbought_exit"
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, md.ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, position.ErrPositionUnknown):
		return "position_unknown"
	case errors.Is(err, broker.ErrOrderRejected):
		return "order_rejected"
	default:
		return "error"
	}
}

func orderID(receipt *broker.OrderReceipt) string {
	if receipt == nil {
		return ""
	}
	return receipt.ID
}
