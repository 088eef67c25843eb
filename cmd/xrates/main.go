package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/api"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/coingecko"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/config"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/db"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/ethrpc"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/fiat"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/kit"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/logging"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/resolver"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/router"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/storage"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/transport"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/uniswap"
)

const fiatRateTTL = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Options{Dir: cfg.LogDir, Debug: cfg.LogDebug})
	defer log.Sync()

	// Optional persistence for historical-rate lookups
	var store kit.RateStore
	if cfg.PersistenceEnabled() {
		log.Infof("[DB] Connecting to %s:%d/%s ...", cfg.DBHost, cfg.DBPort, cfg.DBName)
		pool, err := db.Connect(cfg.DSN())
		if err != nil {
			log.Errorf("[DB] Connection failed: %v", err)
			os.Exit(1)
		}
		defer func() {
			pool.Close()
			log.Infof("[DB] Connection pool closed")
		}()

		if err := db.TestConnection(pool, log); err != nil {
			log.Errorf("[DB] Test query failed: %v", err)
			os.Exit(1)
		}

		rateRepo := storage.NewRateRepo(pool)
		if err := rateRepo.EnsureSchema(context.Background()); err != nil {
			log.Errorf("[DB] Schema setup failed: %v", err)
			os.Exit(1)
		}
		store = rateRepo
	} else {
		log.Infof("[DB] Persistence disabled - historical rates always hit upstream")
	}

	// Adapters share the identifier catalog but keep separate transports
	// so one provider tripping its breaker never blocks the other.
	res := resolver.New()

	geckoProvider := coingecko.New(
		cfg.CoinGeckoBaseURL,
		transport.New("coingecko", 15*time.Second, log),
		res,
		coingecko.DefaultExchangeMeta(),
		log,
	)

	fiatClient := fiat.New(cfg.FiatAPIBaseURL, transport.New("fiat", 10*time.Second, log), fiatRateTTL, log)

	blocks, err := ethrpc.Dial(cfg.EthereumRPCURL, log)
	if err != nil {
		log.Errorf("[ETHRPC] Dial failed: %v", err)
		os.Exit(1)
	}
	defer blocks.Close()

	dexProvider := uniswap.New(
		cfg.UniswapSubgraphURL,
		transport.New("uniswap", 20*time.Second, log),
		res,
		fiatClient,
		blocks,
		log,
	)

	marketRouter := router.New(dexProvider, geckoProvider, log)

	xrates := kit.New(marketRouter, geckoProvider, store, kit.Config{
		Coins:    cfg.Coins,
		Currency: cfg.Currency,
		TTL:      cfg.CacheTTL,
	}, log)
	xrates.Start()
	defer xrates.Stop()

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(xrates, geckoProvider, cfg.Currency, cfg.APIPort, cfg.APIKey, cfg.CORSAllowOrigin, log)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("[API] Server error: %v", err)
			stop()
		}
	}()

	log.Infof("All services started successfully")

	<-ctx.Done()
	log.Infof("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[API] Shutdown error: %v", err)
	}
	log.Infof("[API] Server closed")
	log.Infof("Shutdown complete")
}
