// Package main runs the shift recording coordinator HTTP server with graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bodycam/backend/config"
	"github.com/bodycam/backend/internal/apperrors"
	"github.com/bodycam/backend/internal/auth"
	"github.com/bodycam/backend/internal/events"
	"github.com/bodycam/backend/internal/livekit"
	"github.com/bodycam/backend/internal/metrics"
	"github.com/bodycam/backend/internal/middleware"
	"github.com/bodycam/backend/internal/profiles"
	"github.com/bodycam/backend/internal/recordings"
	"github.com/bodycam/backend/internal/shifts"
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
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	locator := storage.NewLocator(cfg.Storage.Endpoint, cfg.Storage.Bucket, cfg.Storage.Region)
	var s3Client *storage.S3
	if cfg.Storage.Endpoint != "" && cfg.Storage.Bucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Endpoint:             cfg.Storage.Endpoint,
			Bucket:               cfg.Storage.Bucket,
			AccessKeyID:          cfg.Storage.AccessKeyID,
			SecretAccessKey:      cfg.Storage.SecretAccessKey,
			Region:               cfg.Storage.Region,
			PresignExpireMinutes: cfg.Storage.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("storage presigning disabled", zap.Error(err))
		}
	}
	if !cfg.Storage.Configured() {
		logger.Warn("storage credentials incomplete; egress uploads will fail (DO_SPACES_*)")
	}

	// LiveKit: token signer, egress client, webhook verifier
	var (
		signer   *livekit.Signer
		egress   *livekit.EgressClient
		verifier *livekit.WebhookVerifier
	)
	if cfg.LiveKit.Configured() {
		signer, egress, verifier, err = newLiveKit(cfg.LiveKit, logger)
		if err != nil {
			logger.Fatal("livekit", zap.Error(err))
		}
	} else {
		logger.Warn("LiveKit not configured (LIVEKIT_API_URL, LIVEKIT_API_KEY, LIVEKIT_API_SECRET)")
	}

	shiftRepo := shifts.NewRepository(pool)
	profileRepo := profiles.NewRepository(pool)
	recordingRepo := recordings.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	m := metrics.New()

	var provider recordings.CaptureProvider
	if egress != nil {
		provider = egress
	}
	service := recordings.NewService(recordingRepo, shiftRepo, profileRepo, provider, locator, recordings.CaptureConfig{
		Layout:          cfg.Egress.Layout,
		SegmentDuration: cfg.Egress.SegmentDuration,
		Storage: storage.Credentials{
			AccessKey: cfg.Storage.AccessKeyID,
			Secret:    cfg.Storage.SecretAccessKey,
			Region:    locator.Region(),
			Endpoint:  locator.Endpoint(),
			Bucket:    locator.Bucket(),
		},
	}, logger)
	service.SetRetrier(jobQueue)
	service.SetNotifier(events.NewRedisPubSub(rdb.Client, logger))
	service.SetMetrics(m)
	if s3Client != nil {
		service.SetPresigner(s3Client)
	}

	var webhookVerifier recordings.SignatureVerifier = rejectAll{}
	if verifier != nil {
		webhookVerifier = verifier
	}

	router := newRouter(routerDeps{
		logger:      logger,
		corsOrigins: cfg.Server.CORSAllowedOrigins,
		verifier:    auth.NewVerifier(cfg.Auth.JWTSecret),
		tokens:      livekit.NewHandler(livekit.NewIssuer(shiftRepo, profileRepo, signer, cfg.LiveKit.TokenTTL, logger)),
		recordings:  recordings.NewHandler(service),
		webhook:     recordings.NewWebhookHandler(webhookVerifier, service, logger),
		metrics:     m,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

type routerDeps struct {
	logger      *zap.Logger
	corsOrigins string
	verifier    *auth.Verifier
	tokens      *livekit.Handler
	recordings  *recordings.Handler
	webhook     *recordings.WebhookHandler
	metrics     *metrics.Metrics
}

func newRouter(d routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.corsOrigins))
	router.Use(middleware.Logger(d.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(d.metrics.Handler()))

	// Provider callbacks (no bearer; the signature is checked in the handler)
	router.POST("/webhooks/livekit", d.webhook.Handle)

	api := router.Group("")
	api.Use(middleware.Bearer(d.verifier))
	{
		api.POST("/livekit/token", d.tokens.GetToken)
		api.POST("/recordings/start", d.recordings.Start)
		api.POST("/recordings/stop", d.recordings.Stop)
		api.GET("/shifts/:id/recordings", d.recordings.ListByShift)
		api.GET("/recordings/:id/download-url", d.recordings.GenerateDownloadURL)
	}
	return router
}

// newLiveKit builds the provider clients from one key pair. Webhooks are verified with
// the API secret, which is what LiveKit signs them with.
func newLiveKit(cfg config.LiveKitConfig, logger *zap.Logger) (*livekit.Signer, *livekit.EgressClient, *livekit.WebhookVerifier, error) {
	signer, err := livekit.NewSigner(cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, nil, nil, err
	}
	egress, err := livekit.NewEgressClient(livekit.EgressClientConfig{
		APIURL:      cfg.APIURL,
		CallTimeout: cfg.CallTimeout,
		MaxAttempts: cfg.MaxAttempts,
	}, signer, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("egress client: %w", err)
	}
	verifier, err := livekit.NewWebhookVerifier(signer)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("webhook verifier: %w", err)
	}
	return signer, egress, verifier, nil
}

// rejectAll refuses every callback while provider credentials are missing.
type rejectAll struct{}

func (rejectAll) Verify(*http.Request) ([]byte, error) {
	return nil, fmt.Errorf("%w: provider credentials not configured", apperrors.ErrInvalidSignature)
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
