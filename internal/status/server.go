// Package status exposes the agent's read-only display boundary: last cycle
// outcome, live position, recent bars and trade updates. JSON only; any
// rendering lives outside this process.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"rsibot/internal/engine"
	"rsibot/internal/ledger"
	"rsibot/internal/position"
)

const (
	defaultTradeCount = 20
	maxTradeCount     = 100
)

type Server struct {
	engine    *engine.Engine
	tracker   *position.Tracker
	ledger    *ledger.Ledger
	bars      engine.BarSource
	hub       *Hub
	symbol    string
	lookback  time.Duration
	timeout   time.Duration
	startedAt time.Time
	srv       *http.Server
}

func NewServer(addr string, e *engine.Engine, tracker *position.Tracker, l *ledger.Ledger, bars engine.BarSource, hub *Hub, symbol string, lookback, timeout time.Duration) *Server {
	s := &Server{
		engine:    e,
		tracker:   tracker,
		ledger:    l,
		bars:      bars,
		hub:       hub,
		symbol:    symbol,
		lookback:  lookback,
		timeout:   timeout,
		startedAt: time.Now().UTC(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/bars", s.handleBars)
	mux.HandleFunc("/api/trades", s.handleTrades)
	mux.HandleFunc("/ws", s.handleWS)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start launches the HTTP server in its own goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("status server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("status server error", "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	_ = s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	last := s.engine.LastOutcome()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
		"last_cycle": last.At,
	})
}

// positionRow mirrors the columns the trading dashboard displays.
type positionRow struct {
	Symbol       string          `json:"symbol"`
	Qty          decimal.Decimal `json:"qty"`
	UnrealizedPL decimal.Decimal `json:"unrealized_pl"`
	MarketValue  decimal.Decimal `json:"market_value"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	payload := struct {
		Symbol   string         `json:"symbol"`
		Outcome  engine.Outcome `json:"outcome"`
		Holding  bool           `json:"holding"`
		Position *positionRow   `json:"position"`
	}{
		Symbol:  s.symbol,
		Outcome: s.engine.LastOutcome(),
	}

	pos, err := s.tracker.Get(ctx)
	if err != nil {
		slog.Warn("status position fetch failed", "error", err)
		writeJSON(w, http.StatusOK, payload)
		return
	}
	if pos != nil {
		payload.Holding = pos.Qty.IsPositive()
		payload.Position = &positionRow{
			Symbol:       pos.Symbol,
			Qty:          pos.Qty,
			UnrealizedPL: pos.UnrealizedPL,
			MarketValue:  pos.MarketValue,
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	bars, err := s.bars.RecentBars(ctx, s.symbol, s.lookback)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, bars)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	n := defaultTradeCount
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be a positive integer"})
			return
		}
		n = parsed
	}
	if n > maxTradeCount {
		n = maxTradeCount
	}
	trades := s.ledger.Recent(n)
	if trades == nil {
		trades = []ledger.TradeUpdate{}
	}
	writeJSON(w, http.StatusOK, trades)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin than this API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.hub.Register(conn)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response failed", "error", err)
	}
}
