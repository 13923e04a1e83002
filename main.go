package main

import (
	"context"
	"os/signal"
	"syscall"

	"settlement-service/internal/config"
	"settlement-service/internal/consumer"
	"settlement-service/internal/database"
	"settlement-service/internal/gateway"
	"settlement-service/internal/logger"
	"settlement-service/internal/processor"
	"settlement-service/internal/report"
	"settlement-service/internal/repository"
	"settlement-service/internal/settlement"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	// Initialize database
	db, err := database.New(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	sqlDB, _ := db.DB.DB()
	defer sqlDB.Close()

	// Initialize repositories
	ledgerRepo := repository.NewLedgerRepository(db.DB, log, cfg.Mutation.LockTimeout)
	orderRepo := repository.NewOrderRepository(db.DB, log)
	notificationRepo := repository.NewNotificationRepository(db.DB, log)

	// Wire the settlement core
	rates := settlement.Rates{
		MerchantCommission: cfg.Settlement.MerchantCommissionRate,
		DriverShare:        cfg.Settlement.DriverShareRate,
	}
	orchestrator := settlement.NewOrchestrator(ledgerRepo, rates, log)
	handler := gateway.NewHandler(cfg.Gateway.ServerKey, orderRepo, notificationRepo, orchestrator, log)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create channel for incoming gateway notifications
	updates := make(chan processor.IncomingNotification, cfg.Rabbit.Prefetch*2)

	// Start notification processor goroutine
	go processor.Process(ctx, handler, updates, cfg.Mutation.MaxRetries, log)

	// Start revenue reporter goroutine
	go report.Run(ctx, ledgerRepo, cfg.Report.Interval, log)

	// Initialize and start RabbitMQ consumer
	rmqConsumer, err := consumer.New(cfg.Rabbit, log, updates)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize RabbitMQ consumer")
	}
	defer rmqConsumer.Close()

	// Start consuming messages
	if err := rmqConsumer.Start(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("consumer stopped unexpectedly")
	}

	log.Info("graceful shutdown complete")
}
