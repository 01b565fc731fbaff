package model

import "time"

type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
)

// Notification 点赞/评论/关注的副作用通知，尽力而为写入
type Notification struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)" json:"id" validate:"required,max=36"`
	ToUID     string           `gorm:"column:to_uid;type:varchar(64);index:idx_notification_to;not null" json:"toUid" validate:"required,max=64"`
	FromUID   string           `gorm:"column:from_uid;type:varchar(64);not null" json:"fromUid" validate:"required,max=64"`
	Type      NotificationType `gorm:"type:varchar(16);not null" json:"type" validate:"oneof=like comment follow"`
	CommentID *string          `gorm:"type:varchar(64)" json:"commentId,omitempty"`
	PostID    *string          `gorm:"type:varchar(64)" json:"postId,omitempty"`
	IsRead    bool             `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt time.Time        `gorm:"not null" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }
