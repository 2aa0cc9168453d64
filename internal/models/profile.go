package models

import (
	"time"

	"gorm.io/gorm"
)

// Role names. The roles table carries pricing and rank for the paid ones.
const (
	RoleFree    = "free"
	RoleBasic   = "basic"
	RolePremium = "premium"
	RoleAdmin   = "admin"
)

// HasPremiumAccess reports whether a role may open premium courses, recordings and resources.
func HasPremiumAccess(role string) bool {
	return role == RolePremium || role == RoleAdmin
}

// Profile represents a community member and doubles as the login account.
type Profile struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Email       string         `gorm:"uniqueIndex;size:255;not null" json:"email,omitempty"`
	Password    string         `gorm:"size:255" json:"-"` // Hashed password, empty for LDAP users
	FullName    string         `gorm:"size:150" json:"full_name"`
	DisplayName string         `gorm:"size:100" json:"display_name"`
	AvatarURL   string         `gorm:"size:500" json:"avatar_url"`
	Headline    string         `gorm:"size:200" json:"headline"`
	Bio         string         `gorm:"type:text" json:"bio"`
	Location    string         `gorm:"size:150" json:"location"`
	Website     string         `gorm:"size:300" json:"website"`
	Role        string         `gorm:"size:50;index;default:free" json:"role"` // free, basic, premium, admin
	AuthType    string         `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	Points      int            `gorm:"default:0;index" json:"points"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	Skills      []Tag          `gorm:"many2many:profile_skills" json:"skills,omitempty"`
	LastLogin   *time.Time     `json:"last_login"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Profile) TableName() string { return "profiles" }

// Name returns the best available human-readable name.
func (p *Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

// Level derives the gamification level from the points balance.
func (p *Profile) Level() int {
	return LevelForPoints(p.Points)
}

// LevelForPoints is 1 for every member plus one per 100 points.
func LevelForPoints(points int) int {
	if points < 0 {
		return 1
	}
	return 1 + points/100
}
