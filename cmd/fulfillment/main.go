package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/samuel-warrie/go-realtime-stock/internal/checkout"
	"github.com/samuel-warrie/go-realtime-stock/internal/config"
	"github.com/samuel-warrie/go-realtime-stock/internal/fulfillment"
	kafkax "github.com/samuel-warrie/go-realtime-stock/internal/kafka"
	"github.com/samuel-warrie/go-realtime-stock/internal/ledger"
	"github.com/samuel-warrie/go-realtime-stock/internal/postgres"
	"github.com/samuel-warrie/go-realtime-stock/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "fulfillment").Logger()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicStockDecremented, 1024, log)
	prod.Start(ctx)

	svc := &fulfillment.Service{
		Ledger:      &ledger.Repo{DB: db},
		Redis:       rdb,
		Producer:    prod,
		ServiceName: cfg.ServiceName + "-fulfillment",
		Log:         log,
	}

	group := getenv("FULFILLMENT_GROUP", "fulfillment-svc")
	workers := mustAtoi(os.Getenv("FULFILLMENT_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, checkout.TopicOrderPlaced, workers, log)

	go func() {
		log.Info().Str("group", group).Str("topic", checkout.TopicOrderPlaced).
			Int("workers", workers).Msg("fulfillment consumer started")
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
