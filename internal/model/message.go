package model

import "time"

// Message 消息只创建一次，之后只会翻转 is_read（任一接收方已读即为 true）
type Message struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id" validate:"required,max=36"`
	ConversationID string    `gorm:"type:varchar(36);not null;index:idx_message_conv_created,priority:1" json:"conversationId" validate:"required,max=36"`
	SenderID       string    `gorm:"type:varchar(64);not null" json:"senderId" validate:"required,max=64"`
	Content        string    `gorm:"type:text;not null" json:"content" validate:"required"`
	CreatedAt      time.Time `gorm:"not null;index:idx_message_conv_created,priority:2" json:"createdAt"`
	IsRead         bool      `gorm:"column:is_read;not null;default:false" json:"read"`
}

func (Message) TableName() string { return "messages" }

// MessageRead 某个成员对某条消息的已读回执，主键保证同一人只扣减一次未读
type MessageRead struct {
	MessageID string    `gorm:"primaryKey;type:varchar(36)" json:"messageId" validate:"required,max=36"`
	UserID    string    `gorm:"primaryKey;type:varchar(64)" json:"userId" validate:"required,max=64"`
	ReadAt    time.Time `gorm:"not null" json:"readAt" validate:"required"`
}

func (MessageRead) TableName() string { return "message_reads" }
