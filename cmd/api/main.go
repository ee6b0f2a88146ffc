package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"masterpay/internal/clock"
	"masterpay/internal/config"
	"masterpay/internal/db"
	"masterpay/internal/gateway"
	internalhttp "masterpay/internal/http"
	"masterpay/internal/ledger"
	"masterpay/internal/resolver"
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

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	st := store.NewPostgres(pool)
	gw := buildGateway(cfg)
	hub := internalhttp.NewEventHub()

	led := ledger.New(ledger.Config{
		Store:      st,
		Gateway:    gw,
		Clock:      clock.NewSystem(),
		Emitter:    hub,
		FeePercent: feePercent,
		TTL:        time.Duration(cfg.Escrow.ExpiryDays) * 24 * time.Hour,
	})
	res := resolver.New(led)

	h := internalhttp.NewHandler(led, res)
	srv := internalhttp.NewServer(h, hub)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.Printf("api listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}

func buildGateway(cfg *config.Config) gateway.Gateway {
	rest := gateway.NewRESTClient(cfg.Gateway.BaseURL)
	router := gateway.Router{Default: rest}
	if cfg.Gateway.CryptoXPub != "" {
		deriver := gateway.AddressDeriver{XPub: cfg.Gateway.CryptoXPub, Prefix: cfg.Gateway.CryptoPrefix}
		router.Crypto = gateway.NewCryptoGateway(deriver, rest)
	}
	return router
}
