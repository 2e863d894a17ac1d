package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type CourseHandler struct {
	log           *logger.Logger
	courseService services.CourseService
}

func NewCourseHandler(log *logger.Logger, courseService services.CourseService) *CourseHandler {
	return &CourseHandler{
		log:           log.With("handler", "CourseHandler"),
		courseService: courseService,
	}
}

// GET /api/courses
func (h *CourseHandler) ListCourses(c *gin.Context) {
	filter := repos.CourseFilter{
		Category: c.Query("category"),
		Level:    c.Query("level"),
		Search:   c.Query("search"),
		MinPrice: queryFloat(c, "min_price"),
		MaxPrice: queryFloat(c, "max_price"),
		Sort:     c.Query("sort"),
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", 12),
	}
	page, err := h.courseService.ListCourses(c.Request.Context(), filter)
	if err != nil {
		fail(c, h.log, "ListCourses", err)
		return
	}
	response.RespondOK(c, page)
}

// GET /api/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.courseService.GetCourse(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "GetCourse", err)
		return
	}
	response.RespondOK(c, detail)
}

// GET /api/courses/:id/preview
func (h *CourseHandler) GetCoursePreview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.courseService.GetCoursePreview(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, "GetCoursePreview", err)
		return
	}
	response.RespondOK(c, detail)
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// POST /api/courses/:id/review
func (h *CourseHandler) AddReview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.courseService.AddReview(c.Request.Context(), id, req.Rating, req.Comment)
	if err != nil {
		fail(c, h.log, "AddReview", err)
		return
	}
	payload := gin.H{"review": res.Review, "rating": gin.H{"average": res.Course.RatingAverage, "count": res.Course.RatingCount}}
	if res.Created {
		response.RespondCreated(c, payload)
		return
	}
	response.RespondOK(c, payload)
}
