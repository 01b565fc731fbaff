package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/model"
)

// PopularityUpdate 单个 clip 的窗口点赞数
type PopularityUpdate struct {
	ClipID    string
	Last24h   int64
	LastWeek  int64
	LastMonth int64
}

type ClipRepository interface {
	Create(ctx context.Context, clip *model.Clip) error
	Get(ctx context.Context, id string) (*model.Clip, error)
	// ListAfter 按 id 升序取 cursor 之后的一页
	ListAfter(ctx context.Context, cursor string, limit int) ([]*model.Clip, error)
	CountLikesSince(ctx context.Context, clipID string, since time.Time) (int64, error)
	// ApplyPopularity 在一个事务内写入整页的窗口计数
	ApplyPopularity(ctx context.Context, updates []PopularityUpdate, at time.Time) error
}

type clipRepository struct {
	tx *TxRunner
}

func NewClipRepository(tx *TxRunner) ClipRepository { return &clipRepository{tx: tx} }

func (r *clipRepository) Create(ctx context.Context, clip *model.Clip) error {
	if err := model.Validate(clip); err != nil {
		return err
	}
	return r.tx.DB(ctx).Create(clip).Error
}

func (r *clipRepository) Get(ctx context.Context, id string) (*model.Clip, error) {
	var c model.Clip
	if err := r.tx.DB(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *clipRepository) ListAfter(ctx context.Context, cursor string, limit int) ([]*model.Clip, error) {
	var res []*model.Clip
	q := r.tx.DB(ctx).Order("id ASC").Limit(limit)
	if cursor != "" {
		q = q.Where("id > ?", cursor)
	}
	err := q.Find(&res).Error
	return res, err
}

func (r *clipRepository) CountLikesSince(ctx context.Context, clipID string, since time.Time) (int64, error) {
	var cnt int64
	err := r.tx.DB(ctx).Model(&model.Like{}).
		Where("clip_id = ? AND liked_at >= ?", clipID, since.UTC()).
		Count(&cnt).Error
	return cnt, err
}

func (r *clipRepository) ApplyPopularity(ctx context.Context, updates []PopularityUpdate, at time.Time) error {
	if len(updates) == 0 {
		return nil
	}
	at = at.UTC()
	return r.tx.Transact(ctx, func(tx *gorm.DB) error {
		for _, u := range updates {
			// 只写窗口字段，likes_count 归 toggle 维护
			if err := tx.Model(&model.Clip{}).Where("id = ?", u.ClipID).UpdateColumns(map[string]any{
				"likes_last24h":          u.Last24h,
				"likes_last_week":        u.LastWeek,
				"likes_last_month":       u.LastMonth,
				"last_popularity_update": at,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
