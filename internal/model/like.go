package model

import "time"

// Like 点赞关系，(clip_id, user_id) 主键保证每对最多一条
type Like struct {
	ClipID  string    `gorm:"primaryKey;type:varchar(64);index:idx_like_clip_time,priority:1" json:"clipId" validate:"required,max=64"`
	UserID  string    `gorm:"primaryKey;type:varchar(64)" json:"userId" validate:"required,max=64"`
	LikedAt time.Time `gorm:"not null;index:idx_like_clip_time,priority:2" json:"likedAt" validate:"required"`
}

func (Like) TableName() string { return "likes" }

// SavedClip 收藏关系
type SavedClip struct {
	ClipID  string    `gorm:"primaryKey;type:varchar(64)" json:"clipId" validate:"required,max=64"`
	UserID  string    `gorm:"primaryKey;type:varchar(64);index:idx_saved_user" json:"userId" validate:"required,max=64"`
	SavedAt time.Time `gorm:"not null" json:"savedAt" validate:"required"`
}

func (SavedClip) TableName() string { return "saved_clips" }
