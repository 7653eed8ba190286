package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"rsibot/internal/broker"
	"rsibot/internal/config"
	"rsibot/internal/engine"
	"rsibot/internal/fanout"
	"rsibot/internal/journal"
	"rsibot/internal/ledger"
	"rsibot/internal/md"
	"rsibot/internal/metrics"
	"rsibot/internal/position"
	"rsibot/internal/status"
	"rsibot/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		slog.String("service", "rsibot"),
	))

	runID := generateRunID()
	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath, runID)
	if err != nil {
		log.Fatalf("decision logger error: %v", err)
	}
	defer func() {
		if err := decisions.Close(); err != nil {
			log.Printf("failed to close decision logger: %v", err)
		}
	}()

	m := metrics.New()
	tradeLedger := ledger.New(cfg.LedgerCap)
	brokerClient := broker.New(cfg.APIKey, cfg.APISecret, cfg.PaperBaseURL, cfg.RequestTimeout)
	dataClient := md.New(cfg.APIKey, cfg.APISecret, cfg.RequestTimeout)
	tracker := position.NewTracker(brokerClient, cfg.Symbol)

	engineImpl := engine.New(cfg, dataClient, tracker, brokerClient, decisions).WithMetrics(m)
	hub := status.NewHub()
	consumer := stream.NewConsumer(brokerClient, tradeLedger).
		WithMetrics(m).
		WithNotify(hub.Broadcast)

	if cfg.JournalPath != "" {
		journalWriter, err := journal.Open(cfg.JournalPath)
		if err != nil {
			log.Fatalf("journal error: %v", err)
		}
		defer func() {
			if err := journalWriter.Close(); err != nil {
				log.Printf("failed to close journal: %v", err)
			}
		}()
		consumer.WithJournal(journalWriter)
	}

	if cfg.RedisAddr != "" {
		publisher := fanout.NewPublisher(cfg.RedisAddr, cfg.Symbol)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Printf("failed to close redis publisher: %v", err)
			}
		}()
		consumer.WithPublisher(publisher)
	}

	server := status.NewServer(cfg.StatusAddr, engineImpl, tracker, tradeLedger, dataClient, hub,
		cfg.Symbol, cfg.Lookback, cfg.RequestTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Printf("shutdown signal received")
		cancel()
	}()

	log.Printf("starting bot run_id=%s symbol=%s interval=%s thresholds=%.0f/%.0f",
		runID, cfg.Symbol, cfg.Interval, cfg.LowerThreshold, cfg.UpperThreshold)

	server.Start()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		engine.NewScheduler(engineImpl, cfg.Interval).Run(ctx)
	}()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Stop(shutdownCtx)

	log.Printf("bot shutdown complete")
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return timestamp
	}
	return timestamp + "-" + hex.EncodeToString(randomBytes)
}
