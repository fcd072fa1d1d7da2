package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ryadh-dz/autoecole-api/internal/service"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
	"github.com/ryadh-dz/autoecole-api/pkg/response"
)

// TeacherHandler exposes teacher application endpoints.
type TeacherHandler struct {
	approvals *service.ApprovalService
}

// NewTeacherHandler constructs TeacherHandler.
func NewTeacherHandler(approvals *service.ApprovalService) *TeacherHandler {
	return &TeacherHandler{approvals: approvals}
}

// Create godoc
// @Summary Invite a teacher to the school
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body service.AddTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Router /teachers [post]
func (h *TeacherHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.AddTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	application, err := h.approvals.AddTeacher(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, application)
}

// Pending godoc
// @Summary List pending teacher applications
// @Tags Teachers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers/pending [get]
func (h *TeacherHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	queue, err := h.approvals.PendingTeachers(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, queue, nil)
}

// Approve godoc
// @Summary Approve a teacher application
// @Tags Teachers
// @Produce json
// @Param id path string true "Application ID"
// @Success 204
// @Router /teachers/{id}/approve [post]
func (h *TeacherHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.approvals.ApproveTeacher(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
