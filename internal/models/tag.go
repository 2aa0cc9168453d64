package models

import "time"

type Tag struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:80;not null" json:"name"`
	Slug       string    `gorm:"uniqueIndex;size:100;not null" json:"slug"`
	Category   string    `gorm:"size:50;index" json:"category"` // skill, topic, tool
	Color      string    `gorm:"size:20" json:"color"`
	UsageCount int64     `gorm:"-" json:"usage_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Tag) TableName() string { return "tags" }
