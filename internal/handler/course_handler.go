package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ryadh-dz/autoecole-api/internal/service"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
	"github.com/ryadh-dz/autoecole-api/pkg/response"
)

// CourseHandler exposes course progression endpoints.
type CourseHandler struct {
	courses *service.CourseService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses *service.CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

type examRequest struct {
	Score *int `json:"score" binding:"required"`
}

// Get godoc
// @Summary Get course progression
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	course, err := h.courses.Get(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// CompleteSession godoc
// @Summary Record one attended session
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/sessions [post]
func (h *CourseHandler) CompleteSession(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	course, err := h.courses.CompleteSession(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// SubmitExam godoc
// @Summary Submit a course exam score
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body examRequest true "Exam payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/exam [post]
func (h *CourseHandler) SubmitExam(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req examRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "score is required"))
		return
	}
	course, err := h.courses.SubmitExam(c.Request.Context(), claims.UserID, c.Param("id"), *req.Score)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Retake godoc
// @Summary Restart a failed course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/retake [post]
func (h *CourseHandler) Retake(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	course, err := h.courses.Retake(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}
