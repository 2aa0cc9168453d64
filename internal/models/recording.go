package models

import (
	"time"

	"gorm.io/gorm"
)

// Recording is a recorded live session or webinar.
type Recording struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:200;not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	VideoURL        string         `gorm:"size:500" json:"video_url,omitempty"`
	ThumbnailURL    string         `gorm:"size:500" json:"thumbnail_url"`
	DurationSeconds int            `gorm:"default:0" json:"duration_seconds"`
	RecordedAt      time.Time      `gorm:"index" json:"recorded_at"`
	IsPremium       bool           `gorm:"default:false" json:"is_premium"`
	Views           int            `gorm:"default:0" json:"views"`
	CreatedBy       uint           `json:"created_by"`
	Tags            []Tag          `gorm:"many2many:recording_tags" json:"tags,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Recording) TableName() string { return "recordings" }
