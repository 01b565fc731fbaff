package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/testutil"
)

func newConversationFixture(t *testing.T) (*gorm.DB, ConversationRepository) {
	db := testutil.NewDB(t)
	testutil.SeedUsers(t, db, "a", "b", "c")
	return db, NewConversationRepository(NewTxRunner(db))
}

func strPtr(s string) *string { return &s }

func TestConversation_CreateFanOut(t *testing.T) {
	ctx := context.Background()
	db, repo := newConversationFixture(t)

	conv := &model.Conversation{ID: "conv-ab", PeerKey: strPtr("a:b"), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	created, err := repo.Create(ctx, conv, []string{"a", "b"}, time.Now())
	require.NoError(t, err)
	assert.True(t, created)

	got, err := repo.FindByPeerKey(ctx, "a:b")
	require.NoError(t, err)
	assert.Equal(t, "conv-ab", got.ID)
	assert.Equal(t, map[string]int64{"a": 0, "b": 0}, got.UnreadCounts())

	var a model.User
	require.NoError(t, db.First(&a, "id = ?", "a").Error)
	assert.EqualValues(t, 1, a.ConversationsCount)
}

func TestConversation_CreateConflictReportsNotCreated(t *testing.T) {
	ctx := context.Background()
	db, repo := newConversationFixture(t)

	first := &model.Conversation{ID: "x1", PeerKey: strPtr("a:b")}
	created, err := repo.Create(ctx, first, []string{"a", "b"}, time.Now())
	require.NoError(t, err)
	require.True(t, created)

	// 同 peer_key 不同 id，唯一索引生效
	second := &model.Conversation{ID: "x2", PeerKey: strPtr("a:b")}
	created, err = repo.Create(ctx, second, []string{"a", "b"}, time.Now())
	require.NoError(t, err)
	assert.False(t, created)

	var participants int64
	require.NoError(t, db.Model(&model.ConversationParticipant{}).Count(&participants).Error)
	assert.EqualValues(t, 2, participants)

	var b model.User
	require.NoError(t, db.First(&b, "id = ?", "b").Error)
	assert.EqualValues(t, 1, b.ConversationsCount)
}

func TestConversation_CreateMissingUserRollsBack(t *testing.T) {
	ctx := context.Background()
	db, repo := newConversationFixture(t)

	_, err := repo.Create(ctx, &model.Conversation{ID: "x"}, []string{"a", "ghost"}, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)

	var cnt int64
	require.NoError(t, db.Model(&model.Conversation{}).Count(&cnt).Error)
	assert.Zero(t, cnt)
}

func TestConversation_FindTwoPartyLegacy(t *testing.T) {
	ctx := context.Background()
	_, repo := newConversationFixture(t)
	now := time.Now()

	// 三人群聊不应被当作 a、b 的私聊
	_, err := repo.Create(ctx, &model.Conversation{ID: "group"}, []string{"a", "b", "c"}, now)
	require.NoError(t, err)
	_, err = repo.FindTwoParty(ctx, "a", "b")
	assert.ErrorIs(t, err, ErrNotFound)

	// 没有 peer_key 的旧私聊
	_, err = repo.Create(ctx, &model.Conversation{ID: "legacy"}, []string{"a", "b"}, now)
	require.NoError(t, err)

	got, err := repo.FindTwoParty(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, "legacy", got.ID)
}

func TestConversation_ListByUser(t *testing.T) {
	ctx := context.Background()
	_, repo := newConversationFixture(t)
	now := time.Now()

	_, err := repo.Create(ctx, &model.Conversation{ID: "ab", PeerKey: strPtr("a:b"), UpdatedAt: now}, []string{"a", "b"}, now)
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.Conversation{ID: "bc", PeerKey: strPtr("b:c"), UpdatedAt: now.Add(time.Minute)}, []string{"b", "c"}, now)
	require.NoError(t, err)

	list, err := repo.ListByUser(ctx, "b", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bc", list[0].ID)
	assert.Len(t, list[0].Participants, 2)

	list, err = repo.ListByUser(ctx, "c", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bc", list[0].ID)
}
