package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types
const (
	NotificationForumReply      = "forum_reply"
	NotificationMessage         = "message"
	NotificationProjectOffer    = "project_offer"
	NotificationOfferAccepted   = "offer_accepted"
	NotificationCourseCompleted = "course_completed"
	NotificationSubscription    = "subscription"
	NotificationPoints          = "points"
)

type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ProfileID uint           `gorm:"index;not null" json:"profile_id"`
	Type      string         `gorm:"size:50;index" json:"type"`
	Title     string         `gorm:"size:200;not null" json:"title"`
	Body      string         `gorm:"type:text" json:"body"`
	Link      string         `gorm:"size:500" json:"link"`
	Data      datatypes.JSON `json:"data,omitempty"`
	ReadAt    *time.Time     `gorm:"index" json:"read_at"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
