package model

import "time"

// Clip 短视频；likes_count 精确同步维护，窗口计数由热度任务异步刷新
type Clip struct {
	ID                   string     `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required,max=64"`
	OwnerID              string     `gorm:"type:varchar(64);index:idx_clip_owner;not null" json:"ownerId" validate:"required,max=64"`
	LikesCount           int64      `gorm:"not null;default:0" json:"likesCount" validate:"gte=0"`
	SavesCount           int64      `gorm:"not null;default:0" json:"savesCount" validate:"gte=0"`
	LikesLast24h         int64      `gorm:"column:likes_last24h;not null;default:0" json:"likesLast24h"`
	LikesLastWeek        int64      `gorm:"column:likes_last_week;not null;default:0" json:"likesLastWeek"`
	LikesLastMonth       int64      `gorm:"column:likes_last_month;not null;default:0" json:"likesLastMonth"`
	LastPopularityUpdate *time.Time `gorm:"column:last_popularity_update" json:"lastPopularityUpdate,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

func (Clip) TableName() string { return "clips" }
