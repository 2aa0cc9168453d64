package models

import "time"

// Email categories a member can opt in or out of.
const (
	EmailMarketing     = "marketing"
	EmailForumReplies  = "forum_replies"
	EmailMessages      = "messages"
	EmailProjectOffers = "project_offers"
	EmailCourseUpdates = "course_updates"
	EmailWeeklyDigest  = "weekly_digest"
)

type EmailPreference struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProfileID     uint      `gorm:"uniqueIndex;not null" json:"profile_id"`
	Marketing     bool      `gorm:"default:false" json:"marketing"`
	ForumReplies  bool      `gorm:"default:true" json:"forum_replies"`
	Messages      bool      `gorm:"default:true" json:"messages"`
	ProjectOffers bool      `gorm:"default:true" json:"project_offers"`
	CourseUpdates bool      `gorm:"default:true" json:"course_updates"`
	WeeklyDigest  bool      `gorm:"default:true" json:"weekly_digest"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Allows reports whether mail of the given category may be sent.
// Transactional mail (empty category) is always allowed.
func (p *EmailPreference) Allows(category string) bool {
	switch category {
	case "":
		return true
	case EmailMarketing:
		return p.Marketing
	case EmailForumReplies:
		return p.ForumReplies
	case EmailMessages:
		return p.Messages
	case EmailProjectOffers:
		return p.ProjectOffers
	case EmailCourseUpdates:
		return p.CourseUpdates
	case EmailWeeklyDigest:
		return p.WeeklyDigest
	}
	return false
}

func (EmailPreference) TableName() string { return "email_preferences" }
