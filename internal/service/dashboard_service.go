package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ryadh-dz/autoecole-api/internal/catalog"
	"github.com/ryadh-dz/autoecole-api/internal/models"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
)

type dashboardUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type dashboardEnrollmentRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	CountBySchoolAndStatus(ctx context.Context, schoolID string, status models.EnrollmentStatus) (int, error)
}

type dashboardCourseRepository interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Course, error)
}

type dashboardDocumentRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Document, error)
}

type dashboardSchoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.DrivingSchool, error)
	FindByManager(ctx context.Context, managerID string) (*models.DrivingSchool, error)
}

type dashboardApplicationRepository interface {
	ListBySchool(ctx context.Context, schoolID string) ([]models.TeacherApplicationDetail, error)
	FindLatestByUser(ctx context.Context, userID string) (*models.TeacherApplication, error)
}

type certificateLinker interface {
	SignedURL(enrollmentID string) (string, time.Time, bool)
}

// DashboardCacheKey is the cache key for one user's dashboard payload.
// Writers that change what a user sees invalidate this key.
func DashboardCacheKey(userID string) string {
	return "dashboard:" + userID
}

// StudentEnrollmentSummary is one enrollment on the student dashboard.
type StudentEnrollmentSummary struct {
	Enrollment     models.Enrollment `json:"enrollment"`
	SchoolName     string            `json:"school_name"`
	Courses        []models.Course   `json:"courses"`
	CertificateURL string            `json:"certificate_url,omitempty"`
}

// StudentDashboard is the student view.
type StudentDashboard struct {
	Enrollments  []StudentEnrollmentSummary `json:"enrollments"`
	Documents    []models.Document          `json:"documents"`
	Completeness catalog.Completeness       `json:"completeness"`
}

// ManagerTeacherSummary is one roster row on the manager dashboard.
type ManagerTeacherSummary struct {
	Application       models.TeacherApplicationDetail `json:"application"`
	DocumentsComplete bool                            `json:"documents_complete"`
}

// ManagerDashboard is the manager view.
type ManagerDashboard struct {
	School             models.DrivingSchool    `json:"school"`
	TotalEnrollments   int                     `json:"total_enrollments"`
	PendingEnrollments int                     `json:"pending_enrollments"`
	ActiveStudents     int                     `json:"active_students"`
	Graduates          int                     `json:"graduates"`
	Teachers           []ManagerTeacherSummary `json:"teachers"`
}

// TeacherDashboard is the teacher view.
type TeacherDashboard struct {
	Application  *models.TeacherApplication `json:"application,omitempty"`
	SchoolName   string                     `json:"school_name,omitempty"`
	Completeness catalog.Completeness       `json:"completeness"`
}

// Dashboard is the role-dispatched payload for GET /dashboard.
type Dashboard struct {
	User    models.User       `json:"user"`
	Student *StudentDashboard `json:"student,omitempty"`
	Manager *ManagerDashboard `json:"manager,omitempty"`
	Teacher *TeacherDashboard `json:"teacher,omitempty"`
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Users        dashboardUserRepository
	Enrollments  dashboardEnrollmentRepository
	Courses      dashboardCourseRepository
	Documents    dashboardDocumentRepository
	Schools      dashboardSchoolRepository
	Applications dashboardApplicationRepository
	Docs         documentKindLister
	Certificates certificateLinker
	Cache        *CacheService
	Logger       *zap.Logger
	CacheTTL     time.Duration
}

// DashboardService composes the per-role dashboard payloads. Payloads are
// cached per user; lifecycle writers invalidate the affected keys.
type DashboardService struct {
	users        dashboardUserRepository
	enrollments  dashboardEnrollmentRepository
	courses      dashboardCourseRepository
	documents    dashboardDocumentRepository
	schools      dashboardSchoolRepository
	applications dashboardApplicationRepository
	docs         documentKindLister
	certificates certificateLinker
	cache        *CacheService
	logger       *zap.Logger
	cacheTTL     time.Duration
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:        params.Users,
		enrollments:  params.Enrollments,
		courses:      params.Courses,
		documents:    params.Documents,
		schools:      params.Schools,
		applications: params.Applications,
		docs:         params.Docs,
		certificates: params.Certificates,
		cache:        params.Cache,
		logger:       logger,
		cacheTTL:     ttl,
	}
}

// Get returns the dashboard for the calling user, dispatched on role.
func (s *DashboardService) Get(ctx context.Context, userID string) (*Dashboard, error) {
	key := DashboardCacheKey(userID)
	if s.cache != nil {
		var cached Dashboard
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, nil
		}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	dashboard := &Dashboard{User: *user}
	switch user.Role {
	case models.RoleStudent:
		dashboard.Student, err = s.studentView(ctx, user)
	case models.RoleManager:
		dashboard.Manager, err = s.managerView(ctx, user)
	case models.RoleTeacher:
		dashboard.Teacher, err = s.teacherView(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, dashboard, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return dashboard, nil
}

func (s *DashboardService) studentView(ctx context.Context, user *models.User) (*StudentDashboard, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	documents, err := s.documents.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	kinds := make([]models.DocumentKind, 0, len(documents))
	for _, d := range documents {
		kinds = append(kinds, d.Kind)
	}
	completeness := catalog.Evaluate(models.RoleStudent, kinds)

	summaries := make([]StudentEnrollmentSummary, 0, len(enrollments))
	for _, e := range enrollments {
		courses, err := s.courses.ListByEnrollment(ctx, e.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
		}
		// The dashboard never writes, so the pending_documents to
		// pending_approval move is applied to the rendered copy only.
		if e.Status == models.EnrollmentPendingDocuments && completeness.Complete {
			e.Status = models.EnrollmentPendingApproval
		}
		summary := StudentEnrollmentSummary{Enrollment: e, Courses: courses}
		if school, err := s.schools.FindByID(ctx, e.SchoolID); err == nil {
			summary.SchoolName = school.Name
		}
		if e.Status == models.EnrollmentCompleted && s.certificates != nil {
			if url, _, ok := s.certificates.SignedURL(e.ID); ok {
				summary.CertificateURL = url
			}
		}
		summaries = append(summaries, summary)
	}

	return &StudentDashboard{
		Enrollments:  summaries,
		Documents:    documents,
		Completeness: completeness,
	}, nil
}

func (s *DashboardService) managerView(ctx context.Context, user *models.User) (*ManagerDashboard, error) {
	school, err := s.schools.FindByManager(ctx, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "you do not own a school")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	view := &ManagerDashboard{School: *school}
	counts := []struct {
		status models.EnrollmentStatus
		dest   *int
	}{
		{"", &view.TotalEnrollments},
		{models.EnrollmentPendingApproval, &view.PendingEnrollments},
		{models.EnrollmentApproved, &view.ActiveStudents},
		{models.EnrollmentCompleted, &view.Graduates},
	}
	for _, c := range counts {
		total, err := s.enrollments.CountBySchoolAndStatus(ctx, school.ID, c.status)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		}
		*c.dest = total
	}

	applications, err := s.applications.ListBySchool(ctx, school.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher applications")
	}
	view.Teachers = make([]ManagerTeacherSummary, 0, len(applications))
	for _, a := range applications {
		kinds, err := s.docs.ListKindsByUser(ctx, a.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
		}
		view.Teachers = append(view.Teachers, ManagerTeacherSummary{
			Application:       a,
			DocumentsComplete: catalog.Evaluate(models.RoleTeacher, kinds).Complete,
		})
	}
	return view, nil
}

func (s *DashboardService) teacherView(ctx context.Context, user *models.User) (*TeacherDashboard, error) {
	kinds, err := s.docs.ListKindsByUser(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	view := &TeacherDashboard{Completeness: catalog.Evaluate(models.RoleTeacher, kinds)}

	application, err := s.applications.FindLatestByUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return view, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	view.Application = application
	if school, err := s.schools.FindByID(ctx, application.SchoolID); err == nil {
		view.SchoolName = school.Name
	}
	return view, nil
}
