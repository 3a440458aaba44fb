// Package main runs the standalone finalization worker (recording stop,
// transcode, S3 upload).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vowcast/backend/config"
	"github.com/vowcast/backend/internal/composition"
	"github.com/vowcast/backend/internal/finalize"
	"github.com/vowcast/backend/internal/recording"
	"github.com/vowcast/backend/internal/transcode"
	"github.com/vowcast/backend/internal/weddings"
	"github.com/vowcast/backend/pkg/database"
	"github.com/vowcast/backend/pkg/queue"
	"github.com/vowcast/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		RecordingsBucket:     cfg.AWS.RecordingsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	registry := composition.NewRegistry(rdb.Client)
	composer := composition.NewManager(cfg.Composition.FFmpegPath, cfg.Composition.StopGrace, registry, logger)

	weddingRepo := weddings.NewRepository(pool)
	recordingRepo := recording.NewRepository(pool)
	orchestrator := recording.NewOrchestrator(recordingRepo, weddingRepo, composer, cfg.Recording.OutputDir, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	transcoder := transcode.NewFFmpeg(cfg.Composition.FFmpegPath, logger)
	processor := finalize.NewProcessor(jobQueue, orchestrator, recordingRepo, transcoder, s3Client, logger)

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
