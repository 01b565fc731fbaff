package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/d60-Lab/engagement/config"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/internal/service"
	"github.com/d60-Lab/engagement/pkg/database"
	"github.com/d60-Lab/engagement/pkg/lock"
	"github.com/d60-Lab/engagement/pkg/logger"
)

// 手动跑一次热度聚合，结果以 JSON 输出到 stdout
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	locker, closeLocker, err := lock.FromConfig(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeLocker()

	job := service.NewPopularityJob(repository.NewClipRepository(repository.NewTxRunner(db)), locker, cfg.Popularity, service.SystemClock)
	res, err := job.Run(ctx)
	if errors.Is(err, service.ErrJobRunning) {
		logger.Warn("another instance holds the run lock")
		return err
	}
	if err != nil {
		return err
	}
	logger.Info("done", zap.Int("updated", res.Updated))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
