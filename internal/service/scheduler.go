package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"github.com/d60-Lab/engagement/pkg/logger"
)

// Runner 被调度的任务
type Runner interface {
	Run(ctx context.Context) (RunResult, error)
}

// Triggerer 异步触发：拿到锁即返回，任务在后台执行
type Triggerer interface {
	Trigger(ctx context.Context) (<-chan RunResult, error)
}

// Scheduler 按 cron 表达式（UTC）串行触发任务，上一次没结束不会开始下一次
type Scheduler struct {
	expr  string
	job   Runner
	clock Clock
}

func NewScheduler(expr string, job Runner, clock Clock) (*Scheduler, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	return &Scheduler{expr: expr, job: job, clock: clockOrDefault(clock)}, nil
}

// Next 给定时间之后的下一个触发点
func (s *Scheduler) Next(after time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.expr, after.UTC(), false)
}

// Start 阻塞运行直到 ctx 取消
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info("scheduler started", zap.String("cron", s.expr))
	var last time.Time
	for {
		ref := s.clock()
		if ref.Before(last) {
			ref = last
		}
		next, err := s.Next(ref)
		if err != nil {
			logger.Error("compute next tick", zap.String("cron", s.expr), zap.Error(err))
			return
		}
		wait := next.Sub(s.clock())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("scheduler stopped")
			return
		case <-timer.C:
		}
		last = next

		if _, err := s.job.Run(ctx); err != nil {
			if errors.Is(err, ErrJobRunning) {
				logger.Info("popularity job already running elsewhere, skip tick")
				continue
			}
			logger.Error("scheduled run failed", zap.Error(err))
		}
	}
}
