package repository

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/pkg/database"
	"github.com/d60-Lab/engagement/pkg/logger"
	"github.com/d60-Lab/engagement/pkg/metrics"
)

const (
	defaultMaxTries    = 5
	defaultInitialWait = 20 * time.Millisecond
)

// TxRunner 事务执行器：并发冲突（序列化失败、死锁、sqlite busy）按指数退避重试
type TxRunner struct {
	db       *gorm.DB
	maxTries uint
	initial  time.Duration
}

func NewTxRunner(db *gorm.DB) *TxRunner {
	return &TxRunner{db: db, maxTries: defaultMaxTries, initial: defaultInitialWait}
}

// DB 非事务读使用的连接
func (r *TxRunner) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// Transact 在一个事务内执行 fn；fn 返回错误即整体回滚。
// fn 可能被执行多次，闭包里累积的状态需要在开头重置。
func (r *TxRunner) Transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := r.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return struct{}{}, nil
		}
		if database.IsTransient(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.maxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			metrics.TxRetries.Inc()
			logger.Debug("retry transaction", zap.Error(err), zap.Duration("wait", wait))
		}),
	)
	return err
}
