package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/d60-Lab/engagement/config"
	"github.com/d60-Lab/engagement/internal/api/handler"
	"github.com/d60-Lab/engagement/internal/api/router"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/internal/service"
	"github.com/d60-Lab/engagement/pkg/database"
	"github.com/d60-Lab/engagement/pkg/lock"
	"github.com/d60-Lab/engagement/pkg/logger"
	"github.com/d60-Lab/engagement/pkg/tracing"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// @title Engagement API
// @version 1.0
// @description Like / save / follow toggles, conversations, read receipts and popularity aggregation.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := must(config.Load())
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := must(tracing.Init(ctx, cfg.Tracing))

	db := must(database.InitDB(cfg))
	if cfg.Database.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			logger.Error("auto migrate failed", zap.Error(err))
			return
		}
	}
	locker, closeLocker, err := lock.FromConfig(ctx, cfg.Redis)
	if err != nil {
		logger.Error("init run lock", zap.Error(err))
		return
	}

	// repositories & services
	tx := repository.NewTxRunner(db)
	clips := repository.NewClipRepository(tx)
	msgs := repository.NewMessageRepository(tx)
	notifier := service.NewNotifier(repository.NewNotificationRepository(tx), cfg.Notifier.QueueSize, service.SystemClock)
	stopNotifier := notifier.Start(cfg.Notifier.Workers)

	members := service.NewMembershipService(repository.NewMembershipRepository(tx), clips, notifier, service.SystemClock)
	convs := service.NewConversationService(repository.NewConversationRepository(tx), msgs, cfg.Messaging.MaxContentLen, service.SystemClock)
	reads := service.NewReadReceiptService(msgs, cfg.Messaging.MaxBatchWrites, service.SystemClock)
	job := service.NewPopularityJob(clips, locker, cfg.Popularity, service.SystemClock)

	if cfg.Popularity.Enabled {
		sched := must(service.NewScheduler(cfg.Popularity.Cron, job, service.SystemClock))
		go sched.Start(ctx)
	}

	engine := router.New(cfg, handler.New(members, convs, reads, job))
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.WithCORS(cfg.Server, engine),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	_ = stopNotifier(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	_ = closeLocker()
	_ = database.Close(db)
}
