package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/engagement/internal/model"
)

// ReadItem 一条待标记已读的消息
type ReadItem struct {
	ConversationID string
	MessageID      string
}

type MessageRepository interface {
	// Send 一次事务：写消息、会话最近消息、发送者最近消息、其他成员未读 +1
	Send(ctx context.Context, msg *model.Message) error
	// MarkRead 一次事务内写已读回执、翻转 is_read，并按新写入的回执数扣减 reader 的未读数
	MarkRead(ctx context.Context, readerID string, items []ReadItem, now time.Time) (int, error)
	Get(ctx context.Context, id string) (*model.Message, error)
}

type messageRepository struct {
	tx *TxRunner
}

func NewMessageRepository(tx *TxRunner) MessageRepository { return &messageRepository{tx: tx} }

func (r *messageRepository) Send(ctx context.Context, msg *model.Message) error {
	msg.CreatedAt = msg.CreatedAt.UTC()
	if err := model.Validate(msg); err != nil {
		return err
	}
	return r.tx.Transact(ctx, func(tx *gorm.DB) error {
		var conv model.Conversation
		if err := tx.Select("id").Where("id = ?", msg.ConversationID).First(&conv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var cnt int64
		if err := tx.Model(&model.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", msg.ConversationID, msg.SenderID).
			Count(&cnt).Error; err != nil {
			return err
		}
		if cnt == 0 {
			return ErrNotParticipant
		}

		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Conversation{}).Where("id = ?", msg.ConversationID).UpdateColumns(map[string]any{
			"last_message_id": msg.ID,
			"updated_at":      msg.CreatedAt,
		}).Error; err != nil {
			return err
		}
		res := tx.Model(&model.User{}).Where("id = ?", msg.SenderID).UpdateColumns(map[string]any{
			"last_message_id": msg.ID,
			"last_message_at": msg.CreatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&model.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id <> ?", msg.ConversationID, msg.SenderID).
			UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error
	})
}

func (r *messageRepository) MarkRead(ctx context.Context, readerID string, items []ReadItem, now time.Time) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	now = now.UTC()
	convIDs := make([]string, 0, len(items))
	msgIDs := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		msgIDs = append(msgIDs, it.MessageID)
		if _, ok := seen[it.ConversationID]; !ok {
			seen[it.ConversationID] = struct{}{}
			convIDs = append(convIDs, it.ConversationID)
		}
	}
	// 固定加锁顺序
	sort.Strings(convIDs)

	var flipped int
	err := r.tx.Transact(ctx, func(tx *gorm.DB) error {
		flipped = 0
		var joined []string
		if err := tx.Model(&model.ConversationParticipant{}).
			Where("user_id = ? AND conversation_id IN ?", readerID, convIDs).
			Pluck("conversation_id", &joined).Error; err != nil {
			return err
		}
		member := make(map[string]bool, len(joined))
		for _, id := range joined {
			member[id] = true
		}

		// 只有别人发的、且确实属于该会话的消息才算
		var found []model.Message
		if err := tx.Select("id", "conversation_id").
			Where("id IN ? AND sender_id <> ?", msgIDs, readerID).
			Find(&found).Error; err != nil {
			return err
		}
		convOf := make(map[string]string, len(found))
		for _, m := range found {
			convOf[m.ID] = m.ConversationID
		}

		perConv := make(map[string]int64, len(convIDs))
		var readIDs []string
		for _, it := range items {
			if !member[it.ConversationID] || convOf[it.MessageID] != it.ConversationID {
				continue
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.MessageRead{MessageID: it.MessageID, UserID: readerID, ReadAt: now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			perConv[it.ConversationID]++
			readIDs = append(readIDs, it.MessageID)
		}
		if len(readIDs) == 0 {
			return nil
		}
		if err := tx.Model(&model.Message{}).
			Where("id IN ? AND is_read = ?", readIDs, false).
			UpdateColumn("is_read", true).Error; err != nil {
			return err
		}

		for _, convID := range convIDs {
			n := perConv[convID]
			if n == 0 {
				continue
			}
			if err := tx.Model(&model.ConversationParticipant{}).
				Where("conversation_id = ? AND user_id = ?", convID, readerID).
				UpdateColumn("unread_count",
					gorm.Expr("CASE WHEN unread_count >= ? THEN unread_count - ? ELSE 0 END", n, n)).Error; err != nil {
				return err
			}
			flipped += int(n)
		}
		return nil
	})
	return flipped, err
}

func (r *messageRepository) Get(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	if err := r.tx.DB(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}
