// Package main runs the reconciliation worker that replays recording registry writes
// queued by the server (late registrations and terminal updates from callbacks).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bodycam/backend/config"
	"github.com/bodycam/backend/internal/events"
	"github.com/bodycam/backend/internal/profiles"
	"github.com/bodycam/backend/internal/recordings"
	"github.com/bodycam/backend/internal/shifts"
	"github.com/bodycam/backend/internal/worker"
	"github.com/bodycam/backend/pkg/database"
	"github.com/bodycam/backend/pkg/queue"
	"github.com/bodycam/backend/pkg/redis"
	"github.com/bodycam/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// The worker never talks to the capture provider; it only needs the registries and
	// the locator for the playlist path convention.
	locator := storage.NewLocator(cfg.Storage.Endpoint, cfg.Storage.Bucket, cfg.Storage.Region)
	service := recordings.NewService(
		recordings.NewRepository(pool),
		shifts.NewRepository(pool),
		profiles.NewRepository(pool),
		nil,
		locator,
		recordings.CaptureConfig{Layout: cfg.Egress.Layout, SegmentDuration: cfg.Egress.SegmentDuration},
		logger,
	)
	service.SetNotifier(events.NewRedisPubSub(rdb.Client, logger))

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewReconcileProcessor(service, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
