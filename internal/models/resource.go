package models

import (
	"time"

	"gorm.io/gorm"
)

// Resource types
const (
	ResourceTypeFile     = "file"
	ResourceTypeLink     = "link"
	ResourceTypeVideo    = "video"
	ResourceTypeDocument = "document"
)

// Resource is an item in the shared library: an uploaded file or an external link.
type Resource struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	AuthorID    uint           `gorm:"index;not null" json:"author_id"`
	Author      *Profile       `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title       string         `gorm:"size:200;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Type        string         `gorm:"size:20;index;default:file" json:"type"`
	FileURL     string         `gorm:"size:500" json:"file_url,omitempty"`
	FileKey     string         `gorm:"size:300" json:"-"` // storage key, for deletes
	FileName    string         `gorm:"size:255" json:"file_name"`
	FileSize    int64          `gorm:"default:0" json:"file_size"`
	MimeType    string         `gorm:"size:120" json:"mime_type"`
	ExternalURL string         `gorm:"size:500" json:"external_url,omitempty"`
	IsPremium   bool           `gorm:"default:false" json:"is_premium"`
	PointsCost  int            `gorm:"default:0" json:"points_cost"`
	Downloads   int            `gorm:"default:0" json:"downloads"`
	LikesCount  int            `gorm:"default:0" json:"likes_count"`
	SavesCount  int            `gorm:"default:0" json:"saves_count"`
	Tags        []Tag          `gorm:"many2many:resource_tags" json:"tags,omitempty"`
	Liked       bool           `gorm:"-" json:"liked"`
	Saved       bool           `gorm:"-" json:"saved"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Resource) OwnedBy() uint { return r.AuthorID }

type ResourceLike struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ResourceID uint      `gorm:"uniqueIndex:idx_resource_like_resource_profile;not null" json:"resource_id"`
	ProfileID  uint      `gorm:"uniqueIndex:idx_resource_like_resource_profile;not null;index" json:"profile_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type ResourceSave struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ResourceID uint      `gorm:"uniqueIndex:idx_resource_save_resource_profile;not null" json:"resource_id"`
	ProfileID  uint      `gorm:"uniqueIndex:idx_resource_save_resource_profile;not null;index" json:"profile_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Resource) TableName() string     { return "resources" }
func (ResourceLike) TableName() string { return "resource_likes" }
func (ResourceSave) TableName() string { return "resource_saves" }
