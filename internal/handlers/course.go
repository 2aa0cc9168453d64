package handlers

import (
	"github.com/ZeremItay/autohub/internal/middleware"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

type CourseHandler struct {
	courseService *services.CourseService
}

func NewCourseHandler(courseService *services.CourseService) *CourseHandler {
	return &CourseHandler{courseService: courseService}
}

// List returns published courses with the caller's progress
// GET /api/courses
func (h *CourseHandler) List(c *gin.Context) {
	var req services.CourseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.courseService.List(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// Get returns a course with its sections, lessons and progress
// GET /api/courses/:id
func (h *CourseHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	detail, err := h.courseService.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, detail)
}

// Enroll
// POST /api/courses/:id/enroll
func (h *CourseHandler) Enroll(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	enrollment, err := h.courseService.Enroll(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, enrollment)
}

// Unenroll
// DELETE /api/courses/:id/enroll
func (h *CourseHandler) Unenroll(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.courseService.Unenroll(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "unenrolled"})
}

// GetLesson returns lesson content when the caller may see it
// GET /api/courses/:id/lessons/:lessonId
func (h *CourseHandler) GetLesson(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	lessonID, ok := paramID(c, "lessonId")
	if !ok {
		return
	}

	lesson, err := h.courseService.GetLesson(c.Request.Context(), middleware.CurrentActor(c), courseID, lessonID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, lesson)
}

// CompleteLesson
// POST /api/courses/:id/lessons/:lessonId/complete
func (h *CourseHandler) CompleteLesson(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	lessonID, ok := paramID(c, "lessonId")
	if !ok {
		return
	}

	progress, err := h.courseService.CompleteLesson(c.Request.Context(), middleware.CurrentActor(c), courseID, lessonID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, progress)
}

// Admin

// POST /api/admin/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req services.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	course, err := h.courseService.CreateCourse(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, course)
}

// PUT /api/admin/courses/:id
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	course, err := h.courseService.UpdateCourse(c.Request.Context(), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, course)
}

// DELETE /api/admin/courses/:id
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.courseService.DeleteCourse(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "course deleted successfully"})
}

// POST /api/admin/courses/:id/thumbnail
func (h *CourseHandler) UploadThumbnail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	file, src, ok := openFormFile(c, "file")
	if !ok {
		return
	}
	defer src.Close()

	course, err := h.courseService.UploadThumbnail(c.Request.Context(), id, file.Filename, file.Size, file.Header.Get("Content-Type"), src)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, course)
}

// POST /api/admin/courses/:id/sections
func (h *CourseHandler) CreateSection(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	section, err := h.courseService.CreateSection(c.Request.Context(), courseID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, section)
}

// PUT /api/admin/courses/:id/sections/:sectionId
func (h *CourseHandler) UpdateSection(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	sectionID, ok := paramID(c, "sectionId")
	if !ok {
		return
	}
	var req services.SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	section, err := h.courseService.UpdateSection(c.Request.Context(), courseID, sectionID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, section)
}

// DELETE /api/admin/courses/:id/sections/:sectionId
func (h *CourseHandler) DeleteSection(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	sectionID, ok := paramID(c, "sectionId")
	if !ok {
		return
	}

	if err := h.courseService.DeleteSection(c.Request.Context(), courseID, sectionID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "section deleted successfully"})
}

// POST /api/admin/courses/:id/lessons
func (h *CourseHandler) CreateLesson(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	lesson, err := h.courseService.CreateLesson(c.Request.Context(), courseID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, lesson)
}

// PUT /api/admin/courses/:id/lessons/:lessonId
func (h *CourseHandler) UpdateLesson(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	lessonID, ok := paramID(c, "lessonId")
	if !ok {
		return
	}
	var req services.LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	lesson, err := h.courseService.UpdateLesson(c.Request.Context(), courseID, lessonID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, lesson)
}

// DELETE /api/admin/courses/:id/lessons/:lessonId
func (h *CourseHandler) DeleteLesson(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	lessonID, ok := paramID(c, "lessonId")
	if !ok {
		return
	}

	if err := h.courseService.DeleteLesson(c.Request.Context(), courseID, lessonID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "lesson deleted successfully"})
}

// PUT /api/admin/courses/:id/order
func (h *CourseHandler) Reorder(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.courseService.Reorder(c.Request.Context(), courseID, &req); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "order saved"})
}
