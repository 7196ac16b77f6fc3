package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/config"
	kafkax "github.com/mEsam147/new-Ecommerce-sub000/internal/kafka"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/notifier"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/orders"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &notifier.Service{
		Sender: &notifier.LogSender{Logger: logger},
		Logger: logger,
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")

	created := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderCreated, workers, logger)
	status := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderStatusUpdated, workers, logger)

	go func() {
		logger.Info("notifier consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicOrderCreated),
			zap.Int("workers", workers))
		if err := created.Start(ctx, svc.HandleOrderCreated); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()
	go func() {
		logger.Info("notifier consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicOrderStatusUpdated),
			zap.Int("workers", workers))
		if err := status.Start(ctx, svc.HandleStatusUpdated); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down notifier")
	cancel()
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
