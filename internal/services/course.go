package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/pkg/response"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errLessonLocked = response.NewForbidden("lesson locked")

type CourseService struct {
	db       *gorm.DB
	queue    TaskQueue
	uploader *FileUploader
}

func NewCourseService(db *gorm.DB, queue TaskQueue, uploader *FileUploader) *CourseService {
	return &CourseService{db: db, queue: queue, uploader: uploader}
}

type CourseListRequest struct {
	Pagination
	Category string `form:"category"`
	Search   string `form:"search"`
	Level    string `form:"level"`
	All      bool   `form:"all"` // admins only: include drafts
}

type CourseSummary struct {
	models.Course
	LessonsCount int64 `json:"lessons_count"`
	IsEnrolled   bool  `json:"is_enrolled"`
	Progress     int   `json:"progress"`
}

type courseCount struct {
	CourseID uint
	Count    int64
}

func countByCourse(query *gorm.DB) (map[uint]int64, error) {
	var rows []courseCount
	if err := query.Select("course_id, COUNT(*) AS count").Group("course_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.CourseID] = r.Count
	}
	return out, nil
}

func progressPercent(completed, total int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}

// List returns published courses with lesson counts and, for members, enrollment and progress.
func (s *CourseService) List(ctx context.Context, actor Actor, req *CourseListRequest) (*PageResult[CourseSummary], error) {
	req.normalize(20)
	db := s.db.WithContext(ctx)

	query := db.Model(&models.Course{})
	if !(req.All && actor.IsAdmin()) {
		query = query.Where("is_published = ?", true)
	}
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}
	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Search != "" {
		like := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var courses []models.Course
	if err := query.Preload("Instructor", selectPublicProfile).
		Order("created_at DESC, id DESC").
		Offset(req.offset()).Limit(req.PageSize).
		Find(&courses).Error; err != nil {
		return nil, err
	}

	ids := make([]uint, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
	}

	lessons := map[uint]int64{}
	completions := map[uint]int64{}
	enrolled := map[uint]bool{}
	if len(ids) > 0 {
		var err error
		if lessons, err = countByCourse(db.Model(&models.CourseLesson{}).Where("course_id IN ?", ids)); err != nil {
			return nil, err
		}
		if actor.ID != 0 {
			var enrollments []models.CourseEnrollment
			if err := db.Where("profile_id = ? AND course_id IN ?", actor.ID, ids).Find(&enrollments).Error; err != nil {
				return nil, err
			}
			for _, e := range enrollments {
				enrolled[e.CourseID] = true
			}
			if completions, err = countByCourse(db.Model(&models.LessonCompletion{}).
				Where("profile_id = ? AND course_id IN ?", actor.ID, ids)); err != nil {
				return nil, err
			}
		}
	}

	items := make([]CourseSummary, len(courses))
	for i, c := range courses {
		items[i] = CourseSummary{
			Course:       c,
			LessonsCount: lessons[c.ID],
			IsEnrolled:   enrolled[c.ID],
		}
		if enrolled[c.ID] {
			items[i].Progress = progressPercent(completions[c.ID], lessons[c.ID])
		}
	}
	return newPageResult(req.Pagination, total, items), nil
}

type LessonView struct {
	models.CourseLesson
	Completed bool `json:"completed"`
	Locked    bool `json:"locked"`
}

type SectionView struct {
	models.CourseSection
	Lessons []LessonView `json:"lessons"`
}

type CourseDetail struct {
	Course         *models.Course           `json:"course"`
	Sections       []SectionView            `json:"sections"`
	Enrollment     *models.CourseEnrollment `json:"enrollment"`
	IsEnrolled     bool                     `json:"is_enrolled"`
	LessonsCount   int                      `json:"lessons_count"`
	CompletedCount int                      `json:"completed_count"`
	Progress       int                      `json:"progress"`
}

// courseState is everything the access rules need about one course and one member.
type courseState struct {
	course      models.Course
	enrollment  *models.CourseEnrollment
	sections    []models.CourseSection
	lessons     []models.CourseLesson // in course order
	completions map[uint]bool
}

// loadCourseState fetches the course, enrollment, sections, lessons and
// completions concurrently and merges them once all have returned.
func (s *CourseService) loadCourseState(ctx context.Context, actor Actor, courseID uint) (*courseState, error) {
	st := &courseState{completions: make(map[uint]bool)}
	var completions []models.LessonCompletion

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Preload("Instructor", selectPublicProfile).First(&st.course, courseID).Error
	})
	g.Go(func() error {
		if actor.ID == 0 {
			return nil
		}
		var enrollment models.CourseEnrollment
		err := s.db.WithContext(gctx).Where("profile_id = ? AND course_id = ?", actor.ID, courseID).First(&enrollment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err == nil {
			st.enrollment = &enrollment
		}
		return err
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("course_id = ?", courseID).
			Order("position ASC, id ASC").Find(&st.sections).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("course_id = ?", courseID).
			Order("position ASC, id ASC").Find(&st.lessons).Error
	})
	g.Go(func() error {
		if actor.ID == 0 {
			return nil
		}
		return s.db.WithContext(gctx).Where("profile_id = ? AND course_id = ?", actor.ID, courseID).
			Find(&completions).Error
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("course not found")
		}
		return nil, err
	}
	if !st.course.IsPublished && !actor.IsAdmin() {
		return nil, response.NewNotFound("course not found")
	}

	for _, c := range completions {
		st.completions[c.LessonID] = true
	}
	st.orderLessons()
	return st, nil
}

// orderLessons sorts lessons by section order, then by their own position.
func (st *courseState) orderLessons() {
	bySection := make(map[uint][]models.CourseLesson, len(st.sections))
	for _, l := range st.lessons {
		bySection[l.SectionID] = append(bySection[l.SectionID], l)
	}
	ordered := make([]models.CourseLesson, 0, len(st.lessons))
	for _, sec := range st.sections {
		ordered = append(ordered, bySection[sec.ID]...)
	}
	st.lessons = ordered
}

// lockedLessons marks lessons of a sequential course that follow an uncompleted one.
func (st *courseState) lockedLessons(actor Actor) map[uint]bool {
	locked := make(map[uint]bool)
	if !st.course.Sequential || actor.IsAdmin() {
		return locked
	}
	blocked := false
	for _, l := range st.lessons {
		if blocked {
			locked[l.ID] = true
		}
		if !st.completions[l.ID] {
			blocked = true
		}
	}
	return locked
}

func (st *courseState) completedCount() int {
	n := 0
	for _, l := range st.lessons {
		if st.completions[l.ID] {
			n++
		}
	}
	return n
}

func (st *courseState) findLesson(lessonID uint) *models.CourseLesson {
	for i := range st.lessons {
		if st.lessons[i].ID == lessonID {
			return &st.lessons[i]
		}
	}
	return nil
}

func (s *CourseService) Get(ctx context.Context, actor Actor, courseID uint) (*CourseDetail, error) {
	st, err := s.loadCourseState(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	locked := st.lockedLessons(actor)
	canView := st.enrollment != nil || actor.IsAdmin()

	lessonsBySection := make(map[uint][]LessonView)
	for _, l := range st.lessons {
		view := LessonView{CourseLesson: l, Completed: st.completions[l.ID], Locked: locked[l.ID]}
		view.Content = ""
		if view.Locked || !(canView || l.IsFreePreview) {
			view.VideoURL = ""
		}
		lessonsBySection[l.SectionID] = append(lessonsBySection[l.SectionID], view)
	}

	sections := make([]SectionView, len(st.sections))
	for i, sec := range st.sections {
		lessons := lessonsBySection[sec.ID]
		if lessons == nil {
			lessons = []LessonView{}
		}
		sections[i] = SectionView{CourseSection: sec, Lessons: lessons}
	}

	completed := st.completedCount()
	detail := &CourseDetail{
		Course:         &st.course,
		Sections:       sections,
		Enrollment:     st.enrollment,
		IsEnrolled:     st.enrollment != nil,
		LessonsCount:   len(st.lessons),
		CompletedCount: completed,
	}
	if st.enrollment != nil {
		detail.Progress = progressPercent(int64(completed), int64(len(st.lessons)))
	}
	return detail, nil
}

// Enroll is idempotent: enrolling twice returns the existing enrollment.
func (s *CourseService) Enroll(ctx context.Context, actor Actor, courseID uint) (*models.CourseEnrollment, error) {
	var course models.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("course not found")
		}
		return nil, err
	}
	if !course.IsPublished {
		return nil, response.NewNotFound("course not found")
	}
	if err := requirePremium(actor, course.IsPremium); err != nil {
		return nil, err
	}

	enrollment := models.CourseEnrollment{ProfileID: actor.ID, CourseID: courseID}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&enrollment).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("profile_id = ? AND course_id = ?", actor.ID, courseID).First(&enrollment).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Unenroll removes the enrollment. Lesson completions are kept.
func (s *CourseService) Unenroll(ctx context.Context, actor Actor, courseID uint) error {
	res := s.db.WithContext(ctx).Where("profile_id = ? AND course_id = ?", actor.ID, courseID).Delete(&models.CourseEnrollment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return response.NewNotFound("not enrolled in this course")
	}
	return nil
}

// checkLessonAccess applies enrollment, premium and sequential rules.
func (st *courseState) checkLessonAccess(actor Actor, lesson *models.CourseLesson) error {
	if actor.IsAdmin() {
		return nil
	}
	if st.enrollment == nil {
		if lesson.IsFreePreview {
			return nil
		}
		return response.NewForbidden("enroll in this course to open its lessons")
	}
	if err := requirePremium(actor, st.course.IsPremium); err != nil {
		return err
	}
	if st.lockedLessons(actor)[lesson.ID] {
		return errLessonLocked
	}
	return nil
}

func (s *CourseService) GetLesson(ctx context.Context, actor Actor, courseID, lessonID uint) (*LessonView, error) {
	st, err := s.loadCourseState(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	lesson := st.findLesson(lessonID)
	if lesson == nil {
		return nil, response.NewNotFound("lesson not found")
	}
	if err := st.checkLessonAccess(actor, lesson); err != nil {
		return nil, err
	}
	return &LessonView{CourseLesson: *lesson, Completed: st.completions[lesson.ID]}, nil
}

type LessonProgress struct {
	LessonID        uint `json:"lesson_id"`
	Completed       bool `json:"completed"`
	Progress        int  `json:"progress"`
	CourseCompleted bool `json:"course_completed"`
}

// CompleteLesson records a completion once and, when it finishes the course,
// stamps the enrollment and queues the course rewards.
func (s *CourseService) CompleteLesson(ctx context.Context, actor Actor, courseID, lessonID uint) (*LessonProgress, error) {
	st, err := s.loadCourseState(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	lesson := st.findLesson(lessonID)
	if lesson == nil {
		return nil, response.NewNotFound("lesson not found")
	}
	if st.enrollment == nil {
		return nil, response.NewForbidden("enroll in this course to track progress")
	}
	if err := st.checkLessonAccess(actor, lesson); err != nil {
		return nil, err
	}

	completion := models.LessonCompletion{ProfileID: actor.ID, LessonID: lessonID, CourseID: courseID}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&completion)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		st.completions[lessonID] = true
		enqueue(s.queue, TaskTypePointsAward, PointsAwardTask{
			ProfileID:     actor.ID,
			Action:        models.ActionLessonCompleted,
			ReferenceType: "lesson",
			ReferenceID:   lessonID,
		})
	}

	progress := progressPercent(int64(st.completedCount()), int64(len(st.lessons)))
	result := &LessonProgress{LessonID: lessonID, Completed: true, Progress: progress}

	if progress == 100 {
		result.CourseCompleted = true
		if err := s.markCourseCompleted(ctx, actor, st); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *CourseService) markCourseCompleted(ctx context.Context, actor Actor, st *courseState) error {
	res := s.db.WithContext(ctx).Model(&models.CourseEnrollment{}).
		Where("id = ? AND completed_at IS NULL", st.enrollment.ID).
		Update("completed_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	course := st.course
	enqueue(s.queue, TaskTypePointsAward, PointsAwardTask{
		ProfileID:     actor.ID,
		Action:        models.ActionCourseCompleted,
		ReferenceType: "course",
		ReferenceID:   course.ID,
	})
	enqueue(s.queue, TaskTypeNotification, NotificationTask{
		ProfileID:     actor.ID,
		Type:          models.NotificationCourseCompleted,
		Title:         "You completed " + course.Title,
		Body:          "Congratulations on finishing the course.",
		Link:          "/courses/" + course.Slug,
		Data:          map[string]interface{}{"course_id": course.ID},
		EmailCategory: models.EmailCourseUpdates,
	})
	enqueue(s.queue, TaskTypeActivity, ActivityTask{
		ActorID:    actor.ID,
		Verb:       models.VerbCompletedCourse,
		ObjectType: "course",
		ObjectID:   course.ID,
		Summary:    "completed " + course.Title,
	})
	return nil
}
