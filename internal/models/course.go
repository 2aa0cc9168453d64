package models

import (
	"time"

	"gorm.io/gorm"
)

// Course is a published learning path made of ordered sections and lessons.
type Course struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Title        string          `gorm:"size:200;not null" json:"title"`
	Slug         string          `gorm:"uniqueIndex;size:220;not null" json:"slug"`
	Description  string          `gorm:"type:text" json:"description"`
	ThumbnailURL string          `gorm:"size:500" json:"thumbnail_url"`
	Category     string          `gorm:"size:80;index" json:"category"`
	Level        string          `gorm:"size:30" json:"level"` // beginner, intermediate, advanced
	InstructorID *uint           `json:"instructor_id"`
	Instructor   *Profile        `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
	IsPublished  bool            `gorm:"default:false;index" json:"is_published"`
	IsPremium    bool            `gorm:"default:false" json:"is_premium"`
	Sequential   bool            `gorm:"default:false" json:"sequential"` // lessons unlock in order
	Sections     []CourseSection `gorm:"foreignKey:CourseID" json:"sections,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

type CourseSection struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CourseID  uint           `gorm:"index;not null" json:"course_id"`
	Title     string         `gorm:"size:200;not null" json:"title"`
	Position  int            `gorm:"default:0" json:"position"`
	Lessons   []CourseLesson `gorm:"foreignKey:SectionID" json:"lessons,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type CourseLesson struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CourseID        uint      `gorm:"index;not null" json:"course_id"`
	SectionID       uint      `gorm:"index;not null" json:"section_id"`
	Title           string    `gorm:"size:200;not null" json:"title"`
	Content         string    `gorm:"type:text" json:"content,omitempty"`
	VideoURL        string    `gorm:"size:500" json:"video_url,omitempty"`
	DurationMinutes int       `gorm:"default:0" json:"duration_minutes"`
	Position        int       `gorm:"default:0" json:"position"`
	IsFreePreview   bool      `gorm:"default:false" json:"is_free_preview"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CourseEnrollment links a member to a course. Rows are hard-deleted on unenroll.
type CourseEnrollment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ProfileID   uint       `gorm:"uniqueIndex:idx_enrollment_profile_course;not null" json:"profile_id"`
	CourseID    uint       `gorm:"uniqueIndex:idx_enrollment_profile_course;not null;index" json:"course_id"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type LessonCompletion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProfileID uint      `gorm:"uniqueIndex:idx_completion_profile_lesson;not null" json:"profile_id"`
	LessonID  uint      `gorm:"uniqueIndex:idx_completion_profile_lesson;not null" json:"lesson_id"`
	CourseID  uint      `gorm:"index;not null" json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Course) TableName() string           { return "courses" }
func (CourseSection) TableName() string    { return "course_sections" }
func (CourseLesson) TableName() string     { return "course_lessons" }
func (CourseEnrollment) TableName() string { return "course_enrollments" }
func (LessonCompletion) TableName() string { return "lesson_completions" }
