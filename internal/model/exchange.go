package model

import "time"

// Exchange is one answered question.
type Exchange struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Question     string    `gorm:"type:text;not null" json:"question"`
	Answer       string    `gorm:"type:text;not null" json:"answer"`
	Model        string    `gorm:"size:128" json:"model"`
	Passages     int       `json:"passages"`
	CacheEnabled bool      `json:"cache_enabled"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}
