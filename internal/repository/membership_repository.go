package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/engagement/internal/model"
)

// Membership 描述一种 (entity, user) 成员关系及其聚合计数列
type Membership struct {
	Kind         string
	EntityColumn string
	UserColumn   string
	CounterTable string
	CounterCol   string
	// NewRecord 构造成员记录；entity/user 为空时用作删除条件的模型
	NewRecord func(entityID, userID string, now time.Time) any
}

var (
	Likes = Membership{
		Kind:         "like",
		EntityColumn: "clip_id",
		UserColumn:   "user_id",
		CounterTable: "clips",
		CounterCol:   "likes_count",
		NewRecord: func(entityID, userID string, now time.Time) any {
			return &model.Like{ClipID: entityID, UserID: userID, LikedAt: now}
		},
	}
	Saves = Membership{
		Kind:         "save",
		EntityColumn: "clip_id",
		UserColumn:   "user_id",
		CounterTable: "clips",
		CounterCol:   "saves_count",
		NewRecord: func(entityID, userID string, now time.Time) any {
			return &model.SavedClip{ClipID: entityID, UserID: userID, SavedAt: now}
		},
	}
	// Follows entity 为被关注者，计数为其粉丝数
	Follows = Membership{
		Kind:         "follow",
		EntityColumn: "followee_id",
		UserColumn:   "follower_id",
		CounterTable: "users",
		CounterCol:   "followers_count",
		NewRecord: func(entityID, userID string, now time.Time) any {
			return &model.Follow{FolloweeID: entityID, FollowerID: userID, CreatedAt: now}
		},
	}
)

type MembershipRepository interface {
	// Add 记录不存在时插入并计数 +1；返回是否发生变化
	Add(ctx context.Context, m Membership, entityID, userID string, now time.Time) (bool, error)
	// Remove 记录存在时删除并计数 -1
	Remove(ctx context.Context, m Membership, entityID, userID string) (bool, error)
	Exists(ctx context.Context, m Membership, entityID, userID string) (bool, error)
	Counter(ctx context.Context, m Membership, entityID string) (int64, error)
}

type membershipRepository struct {
	tx *TxRunner
}

func NewMembershipRepository(tx *TxRunner) MembershipRepository {
	return &membershipRepository{tx: tx}
}

func (r *membershipRepository) Add(ctx context.Context, m Membership, entityID, userID string, now time.Time) (bool, error) {
	rec := m.NewRecord(entityID, userID, now.UTC())
	if err := model.Validate(rec); err != nil {
		return false, err
	}
	var changed bool
	err := r.tx.Transact(ctx, func(tx *gorm.DB) error {
		changed = false
		if err := entityExists(tx, m, entityID); err != nil {
			return err
		}
		// 主键冲突即已存在，幂等
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Table(m.CounterTable).
			Where("id = ?", entityID).
			UpdateColumn(m.CounterCol, gorm.Expr(m.CounterCol+" + 1")).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

func (r *membershipRepository) Remove(ctx context.Context, m Membership, entityID, userID string) (bool, error) {
	var changed bool
	err := r.tx.Transact(ctx, func(tx *gorm.DB) error {
		changed = false
		if err := entityExists(tx, m, entityID); err != nil {
			return err
		}
		res := tx.Where(m.EntityColumn+" = ? AND "+m.UserColumn+" = ?", entityID, userID).
			Delete(m.NewRecord("", "", time.Time{}))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		// 计数不会减到负数
		if err := tx.Table(m.CounterTable).
			Where("id = ? AND "+m.CounterCol+" > 0", entityID).
			UpdateColumn(m.CounterCol, gorm.Expr(m.CounterCol+" - 1")).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

func (r *membershipRepository) Exists(ctx context.Context, m Membership, entityID, userID string) (bool, error) {
	var cnt int64
	if err := r.tx.DB(ctx).
		Model(m.NewRecord("", "", time.Time{})).
		Where(m.EntityColumn+" = ? AND "+m.UserColumn+" = ?", entityID, userID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *membershipRepository) Counter(ctx context.Context, m Membership, entityID string) (int64, error) {
	var vals []int64
	if err := r.tx.DB(ctx).Table(m.CounterTable).
		Where("id = ?", entityID).
		Pluck(m.CounterCol, &vals).Error; err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, ErrNotFound
	}
	return vals[0], nil
}

func entityExists(tx *gorm.DB, m Membership, entityID string) error {
	var cnt int64
	if err := tx.Table(m.CounterTable).Where("id = ?", entityID).Count(&cnt).Error; err != nil {
		return err
	}
	if cnt == 0 {
		return ErrNotFound
	}
	return nil
}
