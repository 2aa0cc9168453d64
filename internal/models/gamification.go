package models

import "time"

// Points actions awarded by the system.
const (
	ActionSignup           = "signup"
	ActionForumPost        = "forum_post"
	ActionForumReply       = "forum_reply"
	ActionLessonCompleted  = "lesson_completed"
	ActionCourseCompleted  = "course_completed"
	ActionProjectPublished = "project_published"
	ActionResourceShared   = "resource_shared"
	ActionResourceDownload = "resource_download"
	ActionManualGrant      = "manual_grant"
)

type PointsRule struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Action      string    `gorm:"uniqueIndex;size:50;not null" json:"action"`
	Points      int       `gorm:"not null" json:"points"`
	Description string    `gorm:"size:255" json:"description"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PointsTransaction is one ledger entry. AwardKey is set for rule-based awards
// and deductions tied to a reference so that each happens at most once; it is
// NULL for manual grants.
type PointsTransaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProfileID     uint      `gorm:"index;not null" json:"profile_id"`
	Action        string    `gorm:"size:50;index;not null" json:"action"`
	Points        int       `gorm:"not null" json:"points"`
	ReferenceType string    `gorm:"size:50" json:"reference_type"`
	ReferenceID   uint      `json:"reference_id"`
	AwardKey      *string   `gorm:"uniqueIndex;size:200" json:"-"`
	Description   string    `gorm:"size:255" json:"description"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (PointsRule) TableName() string        { return "points_rules" }
func (PointsTransaction) TableName() string { return "points_transactions" }
