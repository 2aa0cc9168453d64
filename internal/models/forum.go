package models

import (
	"time"

	"gorm.io/gorm"
)

type Forum struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:120;not null" json:"name"`
	Slug        string         `gorm:"uniqueIndex;size:140;not null" json:"slug"`
	Description string         `gorm:"size:1000" json:"description"`
	Icon        string         `gorm:"size:50" json:"icon"`
	Position    int            `gorm:"default:0" json:"position"`
	IsLocked    bool           `gorm:"default:false" json:"is_locked"`
	PostsCount  int64          `gorm:"-" json:"posts_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ForumPost is either a thread starter (ParentID nil) or a reply to one.
type ForumPost struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ForumID      uint           `gorm:"index;not null" json:"forum_id"`
	ParentID     *uint          `gorm:"index" json:"parent_id"`
	AuthorID     uint           `gorm:"index;not null" json:"author_id"`
	Author       *Profile       `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title        string         `gorm:"size:250" json:"title"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	IsPinned     bool           `gorm:"default:false" json:"is_pinned"`
	IsLocked     bool           `gorm:"default:false" json:"is_locked"`
	LikesCount   int            `gorm:"default:0" json:"likes_count"`
	RepliesCount int            `gorm:"default:0" json:"replies_count"`
	Liked        bool           `gorm:"-" json:"liked"`
	Replies      []ForumPost    `gorm:"-" json:"replies,omitempty"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *ForumPost) OwnedBy() uint { return p.AuthorID }

type ForumPostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"uniqueIndex:idx_post_like_post_profile;not null" json:"post_id"`
	ProfileID uint      `gorm:"uniqueIndex:idx_post_like_post_profile;not null;index" json:"profile_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Forum) TableName() string         { return "forums" }
func (ForumPost) TableName() string     { return "forum_posts" }
func (ForumPostLike) TableName() string { return "forum_post_likes" }
