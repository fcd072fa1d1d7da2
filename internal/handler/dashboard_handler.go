package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ryadh-dz/autoecole-api/internal/catalog"
	"github.com/ryadh-dz/autoecole-api/internal/models"
	"github.com/ryadh-dz/autoecole-api/internal/service"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
	"github.com/ryadh-dz/autoecole-api/pkg/response"
)

// DashboardHandler exposes the role-dispatched dashboard and the document
// requirement catalog.
type DashboardHandler struct {
	dashboards   *service.DashboardService
	certificates *service.CertificateService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboards *service.DashboardService, certificates *service.CertificateService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards, certificates: certificates}
}

// Get godoc
// @Summary Get the caller's dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	dashboard, err := h.dashboards.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Requirements godoc
// @Summary List document requirements for a role
// @Tags Dashboard
// @Produce json
// @Param role query string true "Role"
// @Success 200 {object} response.Envelope
// @Router /requirements [get]
func (h *DashboardHandler) Requirements(c *gin.Context) {
	role := models.UserRole(c.Query("role"))
	switch role {
	case models.RoleStudent, models.RoleTeacher, models.RoleManager, models.RoleGuest:
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "unknown role"))
		return
	}
	response.JSON(c, http.StatusOK, catalog.Required(role), nil)
}

// DownloadCertificate godoc
// @Summary Download a completion certificate via signed token
// @Tags Dashboard
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Router /certificates/download [get]
func (h *DashboardHandler) DownloadCertificate(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "token is required"))
		return
	}
	path, err := h.certificates.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, "certificate.pdf")
}
