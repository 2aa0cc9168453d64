package models

import (
	"time"

	"gorm.io/gorm"
)

// Project statuses
const (
	ProjectStatusOpen       = "open"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusCancelled  = "cancelled"
)

// Offer statuses
const (
	OfferStatusPending   = "pending"
	OfferStatusAccepted  = "accepted"
	OfferStatusRejected  = "rejected"
	OfferStatusWithdrawn = "withdrawn"
)

// Project is a marketplace listing members can send offers on.
type Project struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	OwnerID         uint           `gorm:"index;not null" json:"owner_id"`
	Owner           *Profile       `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Title           string         `gorm:"size:200;not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	BudgetMin       float64        `gorm:"default:0" json:"budget_min"`
	BudgetMax       float64        `gorm:"default:0" json:"budget_max"`
	Currency        string         `gorm:"size:10;default:USD" json:"currency"`
	Deadline        *time.Time     `json:"deadline"`
	Status          string         `gorm:"size:30;index;default:open" json:"status"`
	AcceptedOfferID *uint          `json:"accepted_offer_id"`
	Tags            []Tag          `gorm:"many2many:project_tags" json:"tags,omitempty"`
	OffersCount     int64          `gorm:"-" json:"offers_count"`
	Offers          []ProjectOffer `gorm:"foreignKey:ProjectID" json:"offers,omitempty"`
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// OwnedBy implements the ownership check used for edits.
func (p *Project) OwnedBy() uint { return p.OwnerID }

type ProjectOffer struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ProjectID    uint      `gorm:"uniqueIndex:idx_offer_project_profile;not null" json:"project_id"`
	ProfileID    uint      `gorm:"uniqueIndex:idx_offer_project_profile;not null;index" json:"profile_id"`
	Profile      *Profile  `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
	Amount       float64   `gorm:"not null" json:"amount"`
	Message      string    `gorm:"type:text" json:"message"`
	DeliveryDays int       `gorm:"default:0" json:"delivery_days"`
	Status       string    `gorm:"size:20;index;default:pending" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Project) TableName() string      { return "projects" }
func (ProjectOffer) TableName() string { return "project_offers" }

func (o *ProjectOffer) OwnedBy() uint { return o.ProfileID }
