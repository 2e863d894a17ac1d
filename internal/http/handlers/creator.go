package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type CreatorHandler struct {
	log            *logger.Logger
	creatorService services.CreatorService
}

func NewCreatorHandler(log *logger.Logger, creatorService services.CreatorService) *CreatorHandler {
	return &CreatorHandler{
		log:            log.With("handler", "CreatorHandler"),
		creatorService: creatorService,
	}
}

// POST /api/creator/courses
func (h *CreatorHandler) CreateCourse(c *gin.Context) {
	var in services.CreateCourseInput
	if !bindJSON(c, &in) {
		return
	}
	course, err := h.creatorService.CreateCourse(c.Request.Context(), in)
	if err != nil {
		fail(c, h.log, "CreateCourse", err)
		return
	}
	response.RespondCreated(c, gin.H{"course": course})
}

// GET /api/creator/courses
func (h *CreatorHandler) ListCourses(c *gin.Context) {
	page, err := h.creatorService.ListCreatorCourses(c.Request.Context(), repos.CourseFilter{
		Status: c.Query("status"),
		Sort:   c.Query("sort"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 12),
	})
	if err != nil {
		fail(c, h.log, "ListCreatorCourses", err)
		return
	}
	response.RespondOK(c, page)
}

// PUT /api/creator/courses/:id
func (h *CreatorHandler) UpdateCourse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.UpdateCourseInput
	if !bindJSON(c, &in) {
		return
	}
	course, err := h.creatorService.UpdateCourse(c.Request.Context(), id, in)
	if err != nil {
		fail(c, h.log, "UpdateCourse", err)
		return
	}
	response.RespondOK(c, gin.H{"course": course})
}

// POST /api/creator/courses/:id/publish
func (h *CreatorHandler) PublishCourse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	course, err := h.creatorService.PublishCourse(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "PublishCourse", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Course submitted for review", "course": course})
}

// POST /api/creator/courses/:id/modules
func (h *CreatorHandler) AddModule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.ModuleInput
	if !bindJSON(c, &in) {
		return
	}
	module, err := h.creatorService.AddModule(c.Request.Context(), id, in)
	if err != nil {
		fail(c, h.log, "AddModule", err)
		return
	}
	response.RespondCreated(c, gin.H{"module": module})
}

// PUT /api/creator/modules/:id
func (h *CreatorHandler) UpdateModule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.ModuleInput
	if !bindJSON(c, &in) {
		return
	}
	module, err := h.creatorService.UpdateModule(c.Request.Context(), id, in)
	if err != nil {
		fail(c, h.log, "UpdateModule", err)
		return
	}
	response.RespondOK(c, gin.H{"module": module})
}

// DELETE /api/creator/modules/:id
func (h *CreatorHandler) DeleteModule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.creatorService.DeleteModule(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "DeleteModule", err)
		return
	}
	response.RespondOK(c, gin.H{
		"message":          "Module deleted",
		"lessons_removed":  res.LessonsRemoved,
		"duration_removed": res.DurationRemoved,
	})
}

// POST /api/creator/modules/:id/lessons
func (h *CreatorHandler) AddLesson(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.LessonInput
	if !bindJSON(c, &in) {
		return
	}
	lesson, err := h.creatorService.AddLesson(c.Request.Context(), id, in)
	if err != nil {
		fail(c, h.log, "AddLesson", err)
		return
	}
	response.RespondCreated(c, gin.H{"lesson": lesson})
}

// PUT /api/creator/lessons/:id
func (h *CreatorHandler) UpdateLesson(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.LessonInput
	if !bindJSON(c, &in) {
		return
	}
	lesson, err := h.creatorService.UpdateLesson(c.Request.Context(), id, in)
	if err != nil {
		fail(c, h.log, "UpdateLesson", err)
		return
	}
	response.RespondOK(c, gin.H{"lesson": lesson})
}

// DELETE /api/creator/lessons/:id
func (h *CreatorHandler) DeleteLesson(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.creatorService.DeleteLesson(c.Request.Context(), id); err != nil {
		fail(c, h.log, "DeleteLesson", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Lesson deleted"})
}

// GET /api/creator/earnings
func (h *CreatorHandler) Earnings(c *gin.Context) {
	earnings, err := h.creatorService.GetEarnings(c.Request.Context())
	if err != nil {
		fail(c, h.log, "GetEarnings", err)
		return
	}
	response.RespondOK(c, earnings)
}

// GET /api/creator/courses/:id/students
func (h *CreatorHandler) CourseStudents(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	students, err := h.creatorService.GetCourseStudents(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "GetCourseStudents", err)
		return
	}
	response.RespondOK(c, gin.H{"students": students})
}
