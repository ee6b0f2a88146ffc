package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"masterpay/internal/clock"
	"masterpay/internal/config"
	"masterpay/internal/db"
	"masterpay/internal/gateway"
	"masterpay/internal/ledger"
	"masterpay/internal/scheduler"
	"masterpay/internal/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	feePercent, err := decimal.NewFromString(cfg.Escrow.FeePercent)
	if err != nil {
		log.Fatalf("invalid escrow.fee_percent: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	st := store.NewPostgres(pool)
	clk := clock.NewSystem()

	rest := gateway.NewRESTClient(cfg.Gateway.BaseURL)
	gwRouter := gateway.Router{Default: rest}
	if cfg.Gateway.CryptoXPub != "" {
		deriver := gateway.AddressDeriver{XPub: cfg.Gateway.CryptoXPub, Prefix: cfg.Gateway.CryptoPrefix}
		gwRouter.Crypto = gateway.NewCryptoGateway(deriver, rest)
	}

	led := ledger.New(ledger.Config{
		Store:      st,
		Gateway:    gwRouter,
		Clock:      clk,
		FeePercent: feePercent,
		TTL:        time.Duration(cfg.Escrow.ExpiryDays) * 24 * time.Hour,
	})

	sch := scheduler.New(st, led, clk, time.Duration(cfg.Scheduler.IntervalSeconds)*time.Second)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		log.Printf("shutting down, letting in-flight tick finish")
		cancel()
	}()

	log.Printf("scheduler started (interval=%ds)", cfg.Scheduler.IntervalSeconds)
	sch.Run(ctx)
}
