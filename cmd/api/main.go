package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/samuel-warrie/go-realtime-stock/internal/cart"
	"github.com/samuel-warrie/go-realtime-stock/internal/checkout"
	"github.com/samuel-warrie/go-realtime-stock/internal/config"
	"github.com/samuel-warrie/go-realtime-stock/internal/httpx"
	kafkax "github.com/samuel-warrie/go-realtime-stock/internal/kafka"
	"github.com/samuel-warrie/go-realtime-stock/internal/ledger"
	"github.com/samuel-warrie/go-realtime-stock/internal/notify"
	"github.com/samuel-warrie/go-realtime-stock/internal/postgres"
	"github.com/samuel-warrie/go-realtime-stock/internal/redisx"
	"github.com/samuel-warrie/go-realtime-stock/internal/syncx"
)

func main() {
	_ = godotenv.Load()
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "store-api").Logger()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ledger
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Cart store
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Order producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicOrderPlaced, 1024, log)
	prod.Start(ctx)

	// Sync engine: full load first so the read API starts populated.
	// A failed initial load keeps serving (empty) and surfaces through
	// /products/refresh instead of crash-looping.
	repo := &ledger.Repo{DB: db}
	engine := syncx.NewEngine(repo, cfg.MinRefreshAge, log)
	if err := engine.LoadAll(ctx); err != nil {
		log.Error().Err(err).Msg("initial product load failed, waiting for refresh")
	}

	sup := syncx.NewSupervisor(engine, &notify.Listener{Pool: db, Log: log}, syncx.SupervisorConfig{
		PollInterval:      cfg.PollInterval,
		ReconnectBase:     cfg.ReconnectBase,
		ReconnectMax:      cfg.ReconnectMax,
		ReconnectAttempts: cfg.ReconnectAttempts,
	}, log)
	sup.Start(ctx)

	router := httpx.NewRouter()
	ph := &httpx.ProductsHandler{Engine: engine, Super: sup, Stock: repo, Log: log}
	ph.Register(router)
	ch := &httpx.CartHandler{
		Store:    &cart.Store{Redis: rdb},
		Engine:   engine,
		Producer: prod,
		Service:  cfg.ServiceName,
		Log:      log,
	}
	ch.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	sup.Stop()       // close channel, cancel reconnect/poll timers
	engine.Close()   // discard anything still in flight
	prod.Close()     // close inbox -> flush & close writer
	cancel()         // stop producer loop
	prod.WaitClosed()
}
