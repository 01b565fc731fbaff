package model

import "time"

// User 用户记录，扇出写会同时更新其计数与最近消息
type User struct {
	ID                 string     `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required,max=64"`
	Username           string     `gorm:"type:varchar(64);uniqueIndex" json:"username" validate:"required,max=64"`
	FollowersCount     int64      `gorm:"not null;default:0" json:"followersCount"`
	ConversationsCount int64      `gorm:"not null;default:0" json:"conversationsCount"`
	LastMessageID      *string    `gorm:"type:varchar(36)" json:"lastMessageId,omitempty"`
	LastMessageAt      *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func (User) TableName() string { return "users" }
