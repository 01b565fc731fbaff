package model

import "time"

// Conversation 会话；两人会话带 peer_key（排序后的 uid 对），唯一索引兜住并发创建
type Conversation struct {
	ID            string                    `gorm:"primaryKey;type:varchar(36)" json:"id" validate:"required,max=36"`
	PeerKey       *string                   `gorm:"type:varchar(160);uniqueIndex:ux_conversation_peer" json:"peerKey,omitempty"`
	LastMessageID *string                   `gorm:"type:varchar(36)" json:"lastMessageId,omitempty"`
	CreatedAt     time.Time                 `json:"createdAt"`
	UpdatedAt     time.Time                 `json:"updatedAt"`
	Participants  []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty" validate:"-"`
}

func (Conversation) TableName() string { return "conversations" }

// ConversationParticipant 会话成员，unread_count 即该成员的未读计数；user_id 索引充当用户的会话列表
type ConversationParticipant struct {
	ConversationID string    `gorm:"primaryKey;type:varchar(36)" json:"conversationId" validate:"required,max=36"`
	UserID         string    `gorm:"primaryKey;type:varchar(64);index:idx_participant_user" json:"userId" validate:"required,max=64"`
	UnreadCount    int64     `gorm:"not null;default:0" json:"unreadCount" validate:"gte=0"`
	JoinedAt       time.Time `gorm:"not null" json:"joinedAt" validate:"required"`
}

func (ConversationParticipant) TableName() string { return "conversation_participants" }

// UnreadCounts 会话成员 -> 未读数
func (c *Conversation) UnreadCounts() map[string]int64 {
	out := make(map[string]int64, len(c.Participants))
	for _, p := range c.Participants {
		out[p.UserID] = p.UnreadCount
	}
	return out
}
