// Package main runs the VowCast live-stream control plane with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vowcast/backend/config"
	"github.com/vowcast/backend/internal/auth"
	"github.com/vowcast/backend/internal/composition"
	"github.com/vowcast/backend/internal/finalize"
	"github.com/vowcast/backend/internal/ingress"
	"github.com/vowcast/backend/internal/live"
	"github.com/vowcast/backend/internal/middleware"
	"github.com/vowcast/backend/internal/recording"
	"github.com/vowcast/backend/internal/transcode"
	"github.com/vowcast/backend/internal/weddings"
	"github.com/vowcast/backend/pkg/database"
	"github.com/vowcast/backend/pkg/queue"
	"github.com/vowcast/backend/pkg/redis"
	"github.com/vowcast/backend/pkg/response"
	"github.com/vowcast/backend/pkg/storage"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Weddings
	weddingRepo := weddings.NewRepository(pool)
	weddingHandler := weddings.NewHandler(weddingRepo, logger)

	// Multi-camera composition
	registry := composition.NewRegistry(rdb.Client)
	composer := composition.NewManager(cfg.Composition.FFmpegPath, cfg.Composition.StopGrace, registry, logger)

	// Recording orchestration
	recordingRepo := recording.NewRepository(pool)
	orchestrator := recording.NewOrchestrator(recordingRepo, weddingRepo, composer, cfg.Recording.OutputDir, logger)
	recordingHandler := recording.NewHandler(recordingRepo, weddingRepo, s3Client, logger)

	monitor := composition.NewHealthMonitor(composer, weddingRepo, recordingRepo, logger)
	compositionHandler := composition.NewHandler(monitor, weddingRepo, logger)

	// Live session lifecycle
	jobQueue := queue.NewQueue(rdb.Client, logger)
	ingressProvider := ingress.NewProvider(rdb.Client, cfg.Ingress.ServerURL, cfg.Ingress.KeyTTLHours, logger)
	liveRepo := live.NewRepository(pool)
	controller := live.NewController(liveRepo, weddingRepo, ingressProvider, orchestrator, jobQueue, cfg.Recording.DefaultQuality, logger)
	liveHandler := live.NewHandler(controller, logger)
	webhookHandler := live.NewWebhookHandler(controller, cfg.Ingress.WebhookSecret, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)

		// Weddings
		api.GET("/weddings", weddingHandler.List)
		api.POST("/weddings", weddingHandler.Create)
		api.GET("/weddings/:id", weddingHandler.Get)
		api.PATCH("/weddings/:id/camera", weddingHandler.SetCamera)

		// Live session lifecycle
		api.POST("/weddings/:id/live/go-live", liveHandler.GoLive)
		api.POST("/weddings/:id/live/pause", liveHandler.Pause)
		api.POST("/weddings/:id/live/resume", liveHandler.Resume)
		api.POST("/weddings/:id/live/end", liveHandler.EndLive)
		api.GET("/weddings/:id/live/status", liveHandler.Status)

		// Recording jobs
		api.GET("/weddings/:id/recording", recordingHandler.GetByWedding)
		api.GET("/recordings/:id/download-url", recordingHandler.DownloadURL)

		// Composition health
		api.GET("/weddings/:id/composition/health", compositionHandler.Health)
		api.POST("/weddings/:id/composition/recover", compositionHandler.Recover)
	}

	// Ingest signal webhooks (no JWT; trust anchored in the stream key plus
	// the optional shared secret)
	router.POST("/webhooks/ingress/started", webhookHandler.StreamStarted)
	router.POST("/webhooks/ingress/stopped", webhookHandler.StreamStopped)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process finalization worker (recording stop, transcode, S3 upload)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		transcoder := transcode.NewFFmpeg(cfg.Composition.FFmpegPath, logger)
		processor := finalize.NewProcessor(jobQueue, orchestrator, recordingRepo, transcoder, s3Client, logger)
		go processor.Run(workerCtx)
	} else {
		logger.Warn("finalize worker disabled: s3 not configured")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
