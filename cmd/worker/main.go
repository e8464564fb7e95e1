// Package main runs the background job worker: email delivery, refund settlement and temp avatar cleanup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conreg/backend/config"
	"github.com/conreg/backend/internal/avatars"
	"github.com/conreg/backend/internal/emaillogs"
	"github.com/conreg/backend/internal/notify"
	"github.com/conreg/backend/internal/payments"
	"github.com/conreg/backend/internal/worker"
	"github.com/conreg/backend/pkg/database"
	"github.com/conreg/backend/pkg/queue"
	"github.com/conreg/backend/pkg/redis"
	"github.com/conreg/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.PoolOptions(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	notifier := notify.New(jobQueue, notify.Recipients{
		RegistrationGroup: cfg.Email.RegistrationGroup,
		BoardGroup:        cfg.Email.BoardGroup,
		Treasurer:         cfg.Email.Treasurer,
	}, logger)

	var gateway payments.Gateway = payments.Manual{}
	if cfg.Stripe.SecretKey != "" {
		gateway = payments.NewStripe(payments.StripeConfig{
			SecretKey: cfg.Stripe.SecretKey,
			BaseURL:   cfg.Stripe.BaseURL,
			Currency:  cfg.Stripe.Currency,
		}, logger)
	}

	from := cfg.Email.FromAddress
	if cfg.Email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.Email.FromName, cfg.Email.FromAddress)
	}
	processor := worker.NewEmailProcessor(jobQueue, emaillogs.NewRepository(pool), notify.NewLogMailer(logger), from, logger)

	settler := payments.NewSettler(payments.NewRepository(pool), gateway, notifier,
		cfg.Refunds.SettleAfter, cfg.Refunds.WarnWithin, logger)
	tasks := []*worker.Periodic{
		worker.NewPeriodic("refund_settlement", cfg.Refunds.PollInterval, worker.SettleRefunds(settler, logger), logger),
	}

	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AvatarsBucket:        cfg.AWS.AvatarsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled; temp avatar cleanup off", zap.Error(err))
		} else {
			avatarSvc := avatars.NewService(avatars.NewRepository(pool), s3Client, cfg.Avatars.TempTTL, logger)
			tasks = append(tasks, worker.NewPeriodic("temp_avatar_cleanup", cfg.Avatars.CleanupInterval, worker.CleanupAvatars(avatarSvc, logger), logger))
		}
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	for _, t := range tasks {
		t.Start(workerCtx)
	}
	logger.Info("worker started", zap.Int("periodic_tasks", len(tasks)))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	for _, t := range tasks {
		t.Stop()
	}
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
