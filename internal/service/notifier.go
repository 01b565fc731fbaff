package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/pkg/logger"
	"github.com/d60-Lab/engagement/pkg/metrics"
)

// NotificationEvent 待写入的通知
type NotificationEvent struct {
	Type    model.NotificationType
	ToUID   string
	FromUID string
	PostID  *string
	enqAt   time.Time
}

// Notifier 本地异步通知写入器：有界队列，满了直接丢弃，写失败不重试
type Notifier struct {
	repo  repository.NotificationRepository
	ch    chan NotificationEvent
	clock Clock

	mu      sync.RWMutex
	stopped bool
}

func NewNotifier(repo repository.NotificationRepository, queueSize int, clock Clock) *Notifier {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &Notifier{repo: repo, ch: make(chan NotificationEvent, queueSize), clock: clockOrDefault(clock)}
}

// Start 启动 workers 个消费者，返回的停止函数最多等待 2s 让队列排空
func (n *Notifier) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case ev := <-n.ch:
					n.write(ev)
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		// 之后的 Enqueue 一律丢弃，不再有 worker 消费
		n.mu.Lock()
		n.stopped = true
		n.mu.Unlock()

		timeout := time.NewTimer(2 * time.Second)
		defer timeout.Stop()
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
	drain:
		for len(n.ch) > 0 {
			select {
			case <-timeout.C:
				break drain
			case <-ctx.Done():
				break drain
			case <-ticker.C:
			}
		}
		close(stopCh)
		wg.Wait()
		if left := len(n.ch); left > 0 {
			logger.Warn("notifier stopped with pending events", zap.Int("pending", left))
		}
		return nil
	}
}

func (n *Notifier) write(ev NotificationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec := &model.Notification{
		ID:        uuid.NewString(),
		ToUID:     ev.ToUID,
		FromUID:   ev.FromUID,
		Type:      ev.Type,
		PostID:    ev.PostID,
		CreatedAt: n.clock(),
	}
	if err := n.repo.Create(ctx, rec); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		logger.Warn("write notification failed",
			zap.String("type", string(ev.Type)),
			zap.String("to", ev.ToUID),
			zap.Error(err),
		)
		return
	}
	metrics.Notifications.WithLabelValues("written").Inc()
	if !ev.enqAt.IsZero() {
		logger.Debug("notification written", zap.Duration("lag", time.Since(ev.enqAt)))
	}
}

// Enqueue 非阻塞入队；队列满或已停止返回 false
func (n *Notifier) Enqueue(ev NotificationEvent) bool {
	ev.enqAt = time.Now()
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.stopped {
		n.drop("notifier stopped, drop", ev)
		return false
	}
	select {
	case n.ch <- ev:
		return true
	default:
		n.drop("notifier queue full, drop", ev)
		return false
	}
}

func (n *Notifier) drop(msg string, ev NotificationEvent) {
	metrics.Notifications.WithLabelValues("dropped").Inc()
	logger.Warn(msg,
		zap.String("type", string(ev.Type)),
		zap.String("to", ev.ToUID),
		zap.String("from", ev.FromUID),
	)
}

// QueueLen 当前队列长度（采样值）
func (n *Notifier) QueueLen() int { return len(n.ch) }
