package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ryadh-dz/autoecole-api/internal/middleware"
	"github.com/ryadh-dz/autoecole-api/internal/models"
	"github.com/ryadh-dz/autoecole-api/internal/service"
	"github.com/ryadh-dz/autoecole-api/pkg/config"
)

// Router wires the HTTP handlers onto a gin engine.
type Router struct {
	schools     *SchoolHandler
	enrollments *EnrollmentHandler
	courses     *CourseHandler
	documents   *DocumentHandler
	teachers    *TeacherHandler
	dashboards  *DashboardHandler

	tokens  *service.TokenService
	metrics *service.MetricsService
}

type RouterParams struct {
	Schools     *SchoolHandler
	Enrollments *EnrollmentHandler
	Courses     *CourseHandler
	Documents   *DocumentHandler
	Teachers    *TeacherHandler
	Dashboards  *DashboardHandler
	Tokens      *service.TokenService
	Metrics     *service.MetricsService
}

func NewRouter(params RouterParams) *Router {
	return &Router{
		schools:     params.Schools,
		enrollments: params.Enrollments,
		courses:     params.Courses,
		documents:   params.Documents,
		teachers:    params.Teachers,
		dashboards:  params.Dashboards,
		tokens:      params.Tokens,
		metrics:     params.Metrics,
	}
}

// Register mounts every route on the engine. Authenticated routes sit
// behind the JWT middleware; role guards narrow them further, and services
// re-check ownership where a role alone is not enough.
func (rt *Router) Register(r *gin.Engine, cfg *config.Config) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if rt.metrics != nil {
		r.GET("/metrics", gin.WrapH(rt.metrics.Handler()))
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group(cfg.APIPrefix)

	// Public surface. File downloads authenticate through signed tokens
	// instead of bearer headers so links work from a plain browser.
	v1.GET("/states", rt.schools.States)
	v1.GET("/schools", rt.schools.List)
	v1.GET("/schools/:id", rt.schools.Get)
	v1.GET("/documents/file", rt.documents.Download)
	v1.GET("/certificates/download", rt.dashboards.DownloadCertificate)

	auth := v1.Group("")
	auth.Use(middleware.JWT(rt.tokens))
	{
		auth.GET("/dashboard", rt.dashboards.Get)
		auth.GET("/requirements", rt.dashboards.Requirements)

		auth.POST("/schools", middleware.RequireRoles(models.RoleGuest, models.RoleManager), rt.schools.Create)

		enrollments := auth.Group("/enrollments")
		{
			enrollments.POST("", middleware.RequireRoles(models.RoleGuest, models.RoleStudent), rt.enrollments.Create)
			enrollments.GET("/my", middleware.RequireRoles(models.RoleStudent), rt.enrollments.ListMine)
			enrollments.GET("/pending", middleware.RequireRoles(models.RoleManager), rt.enrollments.Pending)
			enrollments.GET("/export", middleware.RequireRoles(models.RoleManager), rt.enrollments.Export)
			enrollments.GET("/:id", rt.enrollments.Get)
			enrollments.POST("/:id/payment", middleware.RequireRoles(models.RoleStudent), rt.enrollments.RecordPayment)
			enrollments.POST("/:id/approve", middleware.RequireRoles(models.RoleManager), rt.enrollments.Approve)
			enrollments.POST("/:id/reject", middleware.RequireRoles(models.RoleManager), rt.enrollments.Reject)
		}

		courses := auth.Group("/courses", middleware.RequireRoles(models.RoleStudent))
		{
			courses.GET("/:id", rt.courses.Get)
			courses.POST("/:id/sessions", rt.courses.CompleteSession)
			courses.POST("/:id/exam", rt.courses.SubmitExam)
			courses.POST("/:id/retake", rt.courses.Retake)
		}

		documents := auth.Group("/documents")
		{
			documents.POST("", rt.documents.Upload)
			documents.GET("/my", rt.documents.ListMine)
			documents.GET("/:id/download", rt.documents.SignedURL)
			documents.POST("/:id/verify", middleware.RequireRoles(models.RoleManager), rt.documents.Verify)
		}

		teachers := auth.Group("/teachers", middleware.RequireRoles(models.RoleManager))
		{
			teachers.POST("", rt.teachers.Create)
			teachers.GET("/pending", rt.teachers.Pending)
			teachers.POST("/:id/approve", rt.teachers.Approve)
		}
	}
}
