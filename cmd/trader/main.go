package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aitrade/internal/broker"
	"aitrade/internal/config"
	"aitrade/internal/engine"
	"aitrade/internal/session"
	"aitrade/internal/strategy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	location, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Fatalf("invalid time zone %q: %v", cfg.TimeZone, err)
	}
	clock := session.NewClock(location)

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

	alpacaBroker := broker.NewAlpaca(cfg.APIKey, cfg.APISecret, cfg.BaseURL, cfg.StateDir)
	paperBroker := broker.NewPaper(cfg.StateDir, clock, cfg.PaperStartingCash, cfg.PaperSeed)
	selector := broker.NewSelector(alpacaBroker, paperBroker, cfg.ForceBroker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
	err = selector.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		if errors.Is(err, broker.ErrConnection) {
			log.Fatalf("no broker available: %v", err)
		}
		log.Fatalf("broker connect error: %v", err)
	}
	defer func() {
		if err := selector.Disconnect(); err != nil {
			log.Printf("broker disconnect: %v", err)
		}
	}()
	log.Printf("connected broker=%s paper=%v", selector.Name(), selector.IsPaperTrading())

	strategyImpl := strategy.MACDCross{SharesPerTrade: cfg.SharesPerTrade}
	engineImpl, err := engine.New(cfg, strategyImpl, selector, clock, decisions)
	if err != nil {
		log.Fatalf("engine error: %v", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Printf("shutdown signal received")
		cancel()
	}()

	go engine.ReconcileLoop(ctx, selector, cfg.ReconcileInterval)

	log.Printf("starting trader run_id=%s symbols=%v broker=%s time_zone=%s",
		runID, cfg.Symbols, selector.Name(), cfg.TimeZone)

	engineImpl.Warmup(ctx)
	engineImpl.Run(ctx)

	log.Printf("trader shutdown complete")
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return timestamp
	}
	return timestamp + "-" + hex.EncodeToString(randomBytes)
}
