package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/engagement/config"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/pkg/lock"
	"github.com/d60-Lab/engagement/pkg/logger"
	"github.com/d60-Lab/engagement/pkg/metrics"
)

const popularityLockKey = "engagement:job:popularity"

const (
	window24h   = 24 * time.Hour
	windowWeek  = 7 * 24 * time.Hour
	windowMonth = 30 * 24 * time.Hour
)

// RunResult 一次全量扫描的统计
type RunResult struct {
	Scanned     int           `json:"scanned"`
	Updated     int           `json:"updated"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Pages       int           `json:"pages"`
	Interrupted bool          `json:"interrupted"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
}

// PopularityJob 按 id 游标分页重算每个 clip 的 24h / 7d / 30d 点赞数
type PopularityJob struct {
	clips  repository.ClipRepository
	locker lock.Locker
	cfg    config.PopularityConfig
	clock  Clock
}

func NewPopularityJob(clips repository.ClipRepository, locker lock.Locker, cfg config.PopularityConfig, clock Clock) *PopularityJob {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 25
	}
	if cfg.MinRefresh <= 0 {
		cfg.MinRefresh = time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Budget + time.Minute
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &PopularityJob{clips: clips, locker: locker, cfg: cfg, clock: clockOrDefault(clock)}
}

// Run 执行一次扫描。同一时间只允许一个实例运行，否则返回 ErrJobRunning。
// 预算耗尽时停止分页并标记 Interrupted，下次运行从头重扫。
func (j *PopularityJob) Run(ctx context.Context) (RunResult, error) {
	release, err := j.acquire(ctx)
	if err != nil {
		return RunResult{}, err
	}
	defer release()
	return j.scan(ctx)
}

// Trigger 同步拿锁后在后台扫描，立即返回；锁被占用返回 ErrJobRunning。
// 扫描只受 Budget 约束，不随调用方 ctx 取消。结果从返回的 channel 读取（可忽略）。
func (j *PopularityJob) Trigger(ctx context.Context) (<-chan RunResult, error) {
	release, err := j.acquire(ctx)
	if err != nil {
		return nil, err
	}
	done := make(chan RunResult, 1)
	bg := context.WithoutCancel(ctx)
	go func() {
		res, err := j.scan(bg)
		release()
		if err != nil {
			logger.Error("triggered popularity run failed", zap.Error(err))
		}
		done <- res
		close(done)
	}()
	return done, nil
}

func (j *PopularityJob) acquire(ctx context.Context) (func(), error) {
	unlock, err := j.locker.TryLock(ctx, popularityLockKey, j.cfg.LockTTL)
	if errors.Is(err, lock.ErrHeld) {
		metrics.PopularityRuns.WithLabelValues("skipped").Inc()
		return nil, ErrJobRunning
	}
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release popularity lock", zap.Error(err))
		}
	}, nil
}

func (j *PopularityJob) scan(ctx context.Context) (RunResult, error) {
	started := time.Now()
	now := j.clock().UTC()
	res := RunResult{StartedAt: now}

	if j.cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.cfg.Budget)
		defer cancel()
	}

	var limiter *rate.Limiter
	if j.cfg.PageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(j.cfg.PageDelay), 1)
		limiter.Allow()
	}

	cursor := ""
	var runErr error
	for {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		if limiter != nil && res.Pages > 0 {
			if err := limiter.Wait(ctx); err != nil {
				res.Interrupted = true
				break
			}
		}
		page, err := j.clips.ListAfter(ctx, cursor, j.cfg.PageSize)
		if err != nil {
			if ctx.Err() != nil {
				res.Interrupted = true
				break
			}
			runErr = fmt.Errorf("list clips after %q: %w", cursor, err)
			break
		}
		if len(page) == 0 {
			break
		}
		res.Pages++
		if !j.processPage(ctx, page, now, &res) {
			res.Interrupted = true
			break
		}
		cursor = page[len(page)-1].ID
	}

	res.Duration = time.Since(started)
	j.record(res, runErr)
	return res, runErr
}

// processPage 返回 false 表示预算耗尽，页内已算好的结果仍会写入
func (j *PopularityJob) processPage(ctx context.Context, page []*model.Clip, now time.Time, res *RunResult) bool {
	updates := make([]repository.PopularityUpdate, 0, len(page))
	completed := true
	for _, clip := range page {
		if ctx.Err() != nil {
			completed = false
			break
		}
		res.Scanned++
		if clip.LastPopularityUpdate != nil && now.Sub(*clip.LastPopularityUpdate) < j.cfg.MinRefresh {
			res.Skipped++
			metrics.PopularityClips.WithLabelValues("skipped").Inc()
			continue
		}
		u, err := j.countWindows(ctx, clip.ID, now)
		if err != nil {
			if ctx.Err() != nil {
				res.Scanned--
				completed = false
				break
			}
			res.Failed++
			metrics.PopularityClips.WithLabelValues("failed").Inc()
			logger.Warn("count likes failed", zap.String("clip", clip.ID), zap.Error(err))
			continue
		}
		updates = append(updates, u)
	}
	j.commit(ctx, updates, now, res)
	return completed
}

func (j *PopularityJob) countWindows(ctx context.Context, clipID string, now time.Time) (repository.PopularityUpdate, error) {
	u := repository.PopularityUpdate{ClipID: clipID}
	var err error
	if u.Last24h, err = j.clips.CountLikesSince(ctx, clipID, now.Add(-window24h)); err != nil {
		return u, fmt.Errorf("24h window: %w", err)
	}
	if u.LastWeek, err = j.clips.CountLikesSince(ctx, clipID, now.Add(-windowWeek)); err != nil {
		return u, fmt.Errorf("7d window: %w", err)
	}
	if u.LastMonth, err = j.clips.CountLikesSince(ctx, clipID, now.Add(-windowMonth)); err != nil {
		return u, fmt.Errorf("30d window: %w", err)
	}
	return u, nil
}

// commit 整页一个事务；失败时逐个重写，坏的那条不拖累整页
func (j *PopularityJob) commit(ctx context.Context, updates []repository.PopularityUpdate, now time.Time, res *RunResult) {
	if len(updates) == 0 {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	err := j.clips.ApplyPopularity(wctx, updates, now)
	if err == nil {
		res.Updated += len(updates)
		metrics.PopularityClips.WithLabelValues("updated").Add(float64(len(updates)))
		return
	}
	logger.Warn("page commit failed, writing clips one by one", zap.Int("clips", len(updates)), zap.Error(err))
	for _, u := range updates {
		if err := j.clips.ApplyPopularity(wctx, []repository.PopularityUpdate{u}, now); err != nil {
			res.Failed++
			metrics.PopularityClips.WithLabelValues("failed").Inc()
			logger.Warn("write popularity failed", zap.String("clip", u.ClipID), zap.Error(err))
			continue
		}
		res.Updated++
		metrics.PopularityClips.WithLabelValues("updated").Inc()
	}
}

func (j *PopularityJob) record(res RunResult, err error) {
	status := "completed"
	switch {
	case err != nil:
		status = "failed"
	case res.Interrupted:
		status = "interrupted"
	}
	metrics.PopularityRuns.WithLabelValues(status).Inc()
	metrics.PopularityDuration.Observe(res.Duration.Seconds())

	fields := []zap.Field{
		zap.String("status", status),
		zap.Int("scanned", res.Scanned),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Int("pages", res.Pages),
		zap.Duration("duration", res.Duration),
	}
	if err != nil {
		logger.Error("popularity run failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Info("popularity run finished", fields...)
}
