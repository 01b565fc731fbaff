package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/engagement/internal/model"
)

type ConversationRepository interface {
	Get(ctx context.Context, id string) (*model.Conversation, error)
	FindByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error)
	// FindTwoParty 兼容没有 peer_key 的旧会话：a 的会话里恰好两人且包含 b
	FindTwoParty(ctx context.Context, a, b string) (*model.Conversation, error)
	// Create 原子写入会话、成员行与每个成员的会话计数；id / peer_key 冲突时返回 created=false
	Create(ctx context.Context, conv *model.Conversation, members []string, now time.Time) (bool, error)
	// ListByUser 按 updated_at 倒序的用户会话列表
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Conversation, error)
}

type conversationRepository struct {
	tx *TxRunner
}

func NewConversationRepository(tx *TxRunner) ConversationRepository {
	return &conversationRepository{tx: tx}
}

func (r *conversationRepository) Get(ctx context.Context, id string) (*model.Conversation, error) {
	return r.first(r.tx.DB(ctx).Where("id = ?", id))
}

func (r *conversationRepository) FindByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error) {
	return r.first(r.tx.DB(ctx).Where("peer_key = ?", peerKey))
}

func (r *conversationRepository) first(q *gorm.DB) (*model.Conversation, error) {
	var c model.Conversation
	if err := q.Preload("Participants").First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *conversationRepository) FindTwoParty(ctx context.Context, a, b string) (*model.Conversation, error) {
	db := r.tx.DB(ctx)
	withB := db.Model(&model.ConversationParticipant{}).Select("conversation_id").Where("user_id = ?", b)
	pairs := db.Model(&model.ConversationParticipant{}).Select("conversation_id").
		Group("conversation_id").Having("COUNT(*) = 2")

	var ids []string
	if err := db.Model(&model.ConversationParticipant{}).
		Where("user_id = ? AND conversation_id IN (?) AND conversation_id IN (?)", a, withB, pairs).
		Order("conversation_id").
		Limit(1).
		Pluck("conversation_id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, ids[0])
}

func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation, members []string, now time.Time) (bool, error) {
	now = now.UTC()
	if err := model.Validate(conv); err != nil {
		return false, err
	}
	rows := make([]model.ConversationParticipant, len(members))
	for i, uid := range members {
		rows[i] = model.ConversationParticipant{ConversationID: conv.ID, UserID: uid, JoinedAt: now}
		if err := model.Validate(&rows[i]); err != nil {
			return false, err
		}
	}

	var created bool
	err := r.tx.Transact(ctx, func(tx *gorm.DB) error {
		created = false
		var cnt int64
		if err := tx.Model(&model.User{}).Where("id IN ?", members).Count(&cnt).Error; err != nil {
			return err
		}
		if cnt != int64(len(members)) {
			return ErrNotFound
		}

		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 并发创建者已提交
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.User{}).Where("id IN ?", members).
			UpdateColumn("conversations_count", gorm.Expr("conversations_count + 1")).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (r *conversationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Conversation, error) {
	db := r.tx.DB(ctx)
	mine := db.Model(&model.ConversationParticipant{}).Select("conversation_id").Where("user_id = ?", userID)
	var res []*model.Conversation
	err := db.Preload("Participants").
		Where("id IN (?)", mine).
		Order("updated_at DESC").
		Limit(limit).
		Find(&res).Error
	return res, err
}
