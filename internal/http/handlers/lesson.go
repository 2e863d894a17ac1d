package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type LessonHandler struct {
	log           *logger.Logger
	lessonService services.LessonService
}

func NewLessonHandler(log *logger.Logger, lessonService services.LessonService) *LessonHandler {
	return &LessonHandler{
		log:           log.With("handler", "LessonHandler"),
		lessonService: lessonService,
	}
}

// GET /api/lessons/:id
func (h *LessonHandler) GetLesson(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	lesson, err := h.lessonService.GetLesson(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "GetLesson", err)
		return
	}
	response.RespondOK(c, gin.H{"lesson": lesson})
}

// POST /api/lessons/:id/complete
func (h *LessonHandler) MarkComplete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.lessonService.MarkComplete(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "MarkComplete", err)
		return
	}
	response.RespondOK(c, res)
}

type videoProgressRequest struct {
	CurrentTime *float64 `json:"current_time" binding:"required"`
}

// POST /api/lessons/:id/progress
func (h *LessonHandler) RecordVideoProgress(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req videoProgressRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.lessonService.RecordVideoProgress(c.Request.Context(), id, *req.CurrentTime)
	if err != nil {
		fail(c, h.log, "RecordVideoProgress", err)
		return
	}
	response.RespondOK(c, res)
}

type quizRequest struct {
	Answers []int `json:"answers"`
}

// POST /api/lessons/:id/quiz
func (h *LessonHandler) SubmitQuiz(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req quizRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.lessonService.GradeQuiz(c.Request.Context(), id, req.Answers)
	if err != nil {
		fail(c, h.log, "SubmitQuiz", err)
		return
	}
	response.RespondOK(c, res)
}

type assignmentRequest struct {
	SubmissionURL string `json:"submission_url"`
	Comments      string `json:"comments"`
}

// POST /api/lessons/:id/assignment
func (h *LessonHandler) SubmitAssignment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.lessonService.SubmitAssignment(c.Request.Context(), id, req.SubmissionURL, req.Comments)
	if err != nil {
		fail(c, h.log, "SubmitAssignment", err)
		return
	}
	response.RespondOK(c, res)
}
