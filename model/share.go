package model

import "time"

// ShareLink 公开分享链接，ID 即公开 token
type ShareLink struct {
	ID            string     `json:"id" gorm:"primaryKey;size:32"`
	RecordID      int64      `json:"recordId" gorm:"index;not null"`
	OwnerID       int64      `json:"ownerId" gorm:"index;not null"`
	AllowDownload bool       `json:"allowDownload" gorm:"default:false"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	AccessCount   int64      `json:"accessCount" gorm:"default:0"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// TableName 指定表名
func (ShareLink) TableName() string {
	return "share_links"
}

// Expired 链接在 now 时刻是否已过期
func (s *ShareLink) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
