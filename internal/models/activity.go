package models

import (
	"time"

	"gorm.io/datatypes"
)

// Live log verbs
const (
	VerbJoined           = "joined"
	VerbPosted           = "posted"
	VerbReplied          = "replied"
	VerbCompletedCourse  = "completed_course"
	VerbPublishedProject = "published_project"
	VerbSharedResource   = "shared_resource"
)

// Activity is one entry of the community live log.
type Activity struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ActorID    uint           `gorm:"index;not null" json:"actor_id"`
	Actor      *Profile       `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Verb       string         `gorm:"size:50;index;not null" json:"verb"`
	ObjectType string         `gorm:"size:50" json:"object_type"`
	ObjectID   uint           `json:"object_id"`
	Summary    string         `gorm:"size:500" json:"summary"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (Activity) TableName() string { return "activities" }
