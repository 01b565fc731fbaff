package model

import "time"

// Follow 关注关系（A 关注 B），复合主键避免重复关注
type Follow struct {
	FollowerID string    `gorm:"primaryKey;type:varchar(64)" json:"followerId" validate:"required,max=64"`
	FolloweeID string    `gorm:"primaryKey;type:varchar(64);index:idx_follow_followee" json:"followeeId" validate:"required,max=64,nefield=FollowerID"`
	CreatedAt  time.Time `gorm:"not null" json:"createdAt" validate:"required"`
}

func (Follow) TableName() string { return "follows" }
