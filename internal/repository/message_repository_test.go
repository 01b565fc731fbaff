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

type messageFixture struct {
	db    *gorm.DB
	convs ConversationRepository
	msgs  MessageRepository
}

func newMessageFixture(t *testing.T) *messageFixture {
	db := testutil.NewDB(t)
	testutil.SeedUsers(t, db, "a", "b", "c")
	runner := NewTxRunner(db)
	f := &messageFixture{db: db, convs: NewConversationRepository(runner), msgs: NewMessageRepository(runner)}
	_, err := f.convs.Create(context.Background(), &model.Conversation{ID: "g"}, []string{"a", "b", "c"}, time.Now())
	require.NoError(t, err)
	return f
}

func (f *messageFixture) unread(t *testing.T, conv, uid string) int64 {
	var p model.ConversationParticipant
	require.NoError(t, f.db.First(&p, "conversation_id = ? AND user_id = ?", conv, uid).Error)
	return p.UnreadCount
}

func (f *messageFixture) send(t *testing.T, id, sender string) {
	require.NoError(t, f.msgs.Send(context.Background(), &model.Message{
		ID: id, ConversationID: "g", SenderID: sender, Content: "hi " + id, CreatedAt: time.Now(),
	}))
}

func TestMessage_SendFanOut(t *testing.T) {
	f := newMessageFixture(t)
	f.send(t, "m1", "a")

	assert.Zero(t, f.unread(t, "g", "a"))
	assert.EqualValues(t, 1, f.unread(t, "g", "b"))
	assert.EqualValues(t, 1, f.unread(t, "g", "c"))

	conv, err := f.convs.Get(context.Background(), "g")
	require.NoError(t, err)
	require.NotNil(t, conv.LastMessageID)
	assert.Equal(t, "m1", *conv.LastMessageID)

	var sender model.User
	require.NoError(t, f.db.First(&sender, "id = ?", "a").Error)
	require.NotNil(t, sender.LastMessageID)
	assert.Equal(t, "m1", *sender.LastMessageID)
}

func TestMessage_SendRejectsOutsiders(t *testing.T) {
	f := newMessageFixture(t)
	testutil.SeedUsers(t, f.db, "z")
	ctx := context.Background()

	err := f.msgs.Send(ctx, &model.Message{ID: "m1", ConversationID: "g", SenderID: "z", Content: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrNotParticipant)

	err = f.msgs.Send(ctx, &model.Message{ID: "m2", ConversationID: "nope", SenderID: "a", Content: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.msgs.Get(ctx, "m1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMessage_MarkReadCountsOnlyFlips(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()
	f.send(t, "m1", "a")
	f.send(t, "m2", "a")
	f.send(t, "m3", "b")
	require.EqualValues(t, 2, f.unread(t, "g", "b"))

	// m3 是 b 自己发的，不算
	n, err := f.msgs.MarkRead(ctx, "b", []ReadItem{{"g", "m1"}, {"g", "m3"}}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.EqualValues(t, 1, f.unread(t, "g", "b"))

	// 重复提交不再扣减
	n, err = f.msgs.MarkRead(ctx, "b", []ReadItem{{"g", "m1"}}, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.EqualValues(t, 1, f.unread(t, "g", "b"))

	msg, err := f.msgs.Get(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, msg.IsRead)
}

// 群聊里一人已读不影响另一人的未读扣减
func TestMessage_MarkReadPerReaderInGroups(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()
	f.send(t, "m1", "a")

	n, err := f.msgs.MarkRead(ctx, "b", []ReadItem{{"g", "m1"}}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.EqualValues(t, 1, f.unread(t, "g", "c"))

	n, err = f.msgs.MarkRead(ctx, "c", []ReadItem{{"g", "m1"}}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, f.unread(t, "g", "c"))

	var receipts int64
	require.NoError(t, f.db.Model(&model.MessageRead{}).Where("message_id = ?", "m1").Count(&receipts).Error)
	assert.EqualValues(t, 2, receipts)
}

func TestMessage_MarkReadRejectsMismatchedConversation(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()
	testutil.SeedUsers(t, f.db, "d")
	_, err := f.convs.Create(ctx, &model.Conversation{ID: "other"}, []string{"b", "d"}, time.Now())
	require.NoError(t, err)
	f.send(t, "m1", "a")

	// m1 属于 g，不能借 other 的成员身份标记
	n, err := f.msgs.MarkRead(ctx, "b", []ReadItem{{"other", "m1"}}, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.EqualValues(t, 1, f.unread(t, "g", "b"))
}

func TestMessage_MarkReadIgnoresForeignConversations(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()
	testutil.SeedUsers(t, f.db, "z")
	f.send(t, "m1", "a")

	n, err := f.msgs.MarkRead(ctx, "z", []ReadItem{{"g", "m1"}}, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	msg, err := f.msgs.Get(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, msg.IsRead)
}
