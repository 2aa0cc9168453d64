package models

import (
	"time"

	"gorm.io/datatypes"
)

// Subscription statuses
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
	SubscriptionPastDue   = "past_due"
)

// Payment statuses
const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Role is a membership tier. Rank orders plans; free is 0.
type Role struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"uniqueIndex;size:50;not null" json:"name"`
	DisplayName  string         `gorm:"size:100" json:"display_name"`
	Description  string         `gorm:"size:1000" json:"description"`
	PriceMonthly float64        `gorm:"default:0" json:"price_monthly"`
	Currency     string         `gorm:"size:10;default:USD" json:"currency"`
	Rank         int            `gorm:"default:0" json:"rank"`
	Features     datatypes.JSON `json:"features"`
	IsPublic     bool           `json:"is_public"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Subscription is the member's current paid plan. One row per profile.
type Subscription struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ProfileID          uint      `gorm:"uniqueIndex;not null" json:"profile_id"`
	Role               string    `gorm:"size:50;not null" json:"role"`
	Status             string    `gorm:"size:20;index;default:active" json:"status"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `gorm:"index" json:"current_period_end"`
	CancelAtPeriodEnd  bool      `gorm:"default:false" json:"cancel_at_period_end"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type Payment struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ProfileID      uint       `gorm:"index;not null" json:"profile_id"`
	SubscriptionID *uint      `gorm:"index" json:"subscription_id"`
	Role           string     `gorm:"size:50;not null" json:"role"`
	Amount         float64    `gorm:"not null" json:"amount"`
	Currency       string     `gorm:"size:10;default:USD" json:"currency"`
	Status         string     `gorm:"size:20;index;default:pending" json:"status"`
	Provider       string     `gorm:"size:50;default:manual" json:"provider"`
	ProviderRef    string     `gorm:"size:200;index" json:"provider_ref"`
	PaidAt         *time.Time `gorm:"index" json:"paid_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Role) TableName() string         { return "roles" }
func (Subscription) TableName() string { return "subscriptions" }
func (Payment) TableName() string      { return "payments" }
