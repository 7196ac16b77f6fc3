package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mEsam147/new-Ecommerce-sub000/internal/cart"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/checkout"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/config"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/coupon"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/httpx"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/inventory"
	kafkax "github.com/mEsam147/new-Ecommerce-sub000/internal/kafka"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/orders"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/payment"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/postgres"
	"github.com/mEsam147/new-Ecommerce-sub000/internal/redisx"
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

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	createdProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger)
	createdProd.Start(ctx)
	statusProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusUpdated, 1024, logger)
	statusProd.Start(ctx)

	runner := &postgres.Runner{Pool: db}
	gateway := payment.NewClient(cfg.GatewayURL, cfg.GatewayKey)

	orderStore := orders.NewPGStore(db)
	invSvc := inventory.NewService(inventory.NewPGStore(db), logger)
	cartStore := cart.NewPGStore(db)
	couponEngine := coupon.NewEngine(coupon.NewPGStore(db), logger)

	orderSvc := orders.NewService(orderStore, invSvc, gateway, runner, statusProd, cfg.ServiceName, logger)
	orch := checkout.New(cartStore, invSvc, couponEngine, orderStore, gateway, runner, createdProd, cfg.ServiceName, logger)
	reconciler := payment.NewReconciler(orderStore, invSvc, runner,
		&payment.RedisDeduper{Client: rdb}, logger)

	validate := validator.New()
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{
		Checkout: orch,
		Orders:   orderSvc,
		Status:   &redisx.Cache{Client: rdb},
		Validate: validate,
		Logger:   logger,
	}).Register(router)
	(&httpx.CouponsHandler{Engine: couponEngine, Validate: validate}).Register(router)
	(&httpx.WebhookHandler{Reconciler: reconciler, Secret: cfg.WebhookSecret, Logger: logger}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	createdProd.Close()
	statusProd.Close()
	cancel()
	createdProd.WaitClosed()
	statusProd.WaitClosed()
}
