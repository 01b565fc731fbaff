package service

import (
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/internal/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t.UTC()} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	db    *gorm.DB
	tx    *repository.TxRunner
	clock *fakeClock

	members repository.MembershipRepository
	clips   repository.ClipRepository
	convs   repository.ConversationRepository
	msgs    repository.MessageRepository
	notes   repository.NotificationRepository
}

func newEnv(t *testing.T) *env {
	db := testutil.NewDB(t)
	tx := repository.NewTxRunner(db)
	return &env{
		db:      db,
		tx:      tx,
		clock:   newFakeClock(time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)),
		members: repository.NewMembershipRepository(tx),
		clips:   repository.NewClipRepository(tx),
		convs:   repository.NewConversationRepository(tx),
		msgs:    repository.NewMessageRepository(tx),
		notes:   repository.NewNotificationRepository(tx),
	}
}

func (e *env) likesCount(t *testing.T, clipID string) int64 {
	t.Helper()
	var c model.Clip
	if err := e.db.First(&c, "id = ?", clipID).Error; err != nil {
		t.Fatalf("load clip: %v", err)
	}
	return c.LikesCount
}

func (e *env) likeRows(t *testing.T, clipID string) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&model.Like{}).Where("clip_id = ?", clipID).Count(&n).Error; err != nil {
		t.Fatalf("count likes: %v", err)
	}
	return n
}
