package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryadh-dz/autoecole-api/internal/catalog"
	"github.com/ryadh-dz/autoecole-api/internal/models"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
)

type teacherApplicationRepository interface {
	Create(ctx context.Context, application *models.TeacherApplication) error
	FindByID(ctx context.Context, id string) (*models.TeacherApplication, error)
	ExistsForUserAndSchool(ctx context.Context, userID, schoolID string) (bool, error)
	ListPendingBySchool(ctx context.Context, schoolID string) ([]models.TeacherApplicationDetail, error)
	Approve(ctx context.Context, id string, approvedAt time.Time) (bool, error)
}

type approvalEnrollmentRepository interface {
	ListBySchool(ctx context.Context, schoolID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
	AdvanceToApprovalQueue(ctx context.Context, id string) (bool, error)
}

type approvalSchoolRepository interface {
	FindByManager(ctx context.Context, managerID string) (*models.DrivingSchool, error)
}

type approvalUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, from []models.UserRole, to models.UserRole) (bool, error)
}

// PendingEnrollment is one row in the manager's approval queue.
type PendingEnrollment struct {
	models.EnrollmentDetail
	DocumentsComplete bool                  `json:"documents_complete"`
	MissingDocuments  []models.DocumentKind `json:"missing_documents"`
}

// PendingTeacherApplication is one row in the manager's teacher queue.
type PendingTeacherApplication struct {
	models.TeacherApplicationDetail
	DocumentsComplete bool                  `json:"documents_complete"`
	MissingDocuments  []models.DocumentKind `json:"missing_documents"`
}

// AddTeacherRequest holds payload for inviting a teacher to a school.
type AddTeacherRequest struct {
	Email          string `json:"email" validate:"required,email"`
	CanTeachMale   bool   `json:"can_teach_male"`
	CanTeachFemale bool   `json:"can_teach_female"`
}

// ApprovalService serves the manager review queues: enrollments awaiting a
// decision and teacher applications, each annotated with the candidate's
// document completeness.
type ApprovalService struct {
	applications teacherApplicationRepository
	enrollments  approvalEnrollmentRepository
	schools      approvalSchoolRepository
	users        approvalUserRepository
	docs         documentKindLister
	cache        *CacheService
	metrics      *MetricsService
	logger       *zap.Logger
}

// NewApprovalService constructs the approval service.
func NewApprovalService(
	applications teacherApplicationRepository,
	enrollments approvalEnrollmentRepository,
	schools approvalSchoolRepository,
	users approvalUserRepository,
	docs documentKindLister,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		applications: applications,
		enrollments:  enrollments,
		schools:      schools,
		users:        users,
		docs:         docs,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
	}
}

// PendingEnrollments returns the manager's enrollment queue. Enrollments in
// pending_documents whose checklist turns out complete are advanced to
// pending_approval on the way out.
func (s *ApprovalService) PendingEnrollments(ctx context.Context, managerID string) ([]PendingEnrollment, error) {
	school, err := s.ownSchool(ctx, managerID)
	if err != nil {
		return nil, err
	}

	// Snapshot both statuses before advancing anything, otherwise an
	// enrollment advanced mid-pass shows up again in the second listing.
	pending := make([]models.EnrollmentDetail, 0)
	for _, status := range []models.EnrollmentStatus{models.EnrollmentPendingDocuments, models.EnrollmentPendingApproval} {
		enrollments, err := s.enrollments.ListBySchool(ctx, school.ID, status)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
		}
		pending = append(pending, enrollments...)
	}

	queue := make([]PendingEnrollment, 0, len(pending))
	for _, e := range pending {
		kinds, err := s.docs.ListKindsByUser(ctx, e.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
		}
		completeness := catalog.Evaluate(models.RoleStudent, kinds)
		if e.Status == models.EnrollmentPendingDocuments && completeness.Complete {
			if _, err := s.enrollments.AdvanceToApprovalQueue(ctx, e.ID); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance enrollment")
			}
			e.Status = models.EnrollmentPendingApproval
		}
		queue = append(queue, PendingEnrollment{
			EnrollmentDetail:  e,
			DocumentsComplete: completeness.Complete,
			MissingDocuments:  completeness.Missing,
		})
	}
	return queue, nil
}

// AddTeacher files a teacher application for the manager's school on behalf
// of the invited user. At least one teach flag must be set.
func (s *ApprovalService) AddTeacher(ctx context.Context, managerID string, req AddTeacherRequest) (*models.TeacherApplication, error) {
	if !req.CanTeachMale && !req.CanTeachFemale {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "at least one teaching group is required")
	}

	school, err := s.ownSchool(ctx, managerID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no user with this email")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleGuest && user.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user cannot become a teacher")
	}

	exists, err := s.applications.ExistsForUserAndSchool(ctx, user.ID, school.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing application")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "application already exists for this user")
	}

	application := &models.TeacherApplication{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		SchoolID:       school.ID,
		CanTeachMale:   req.CanTeachMale,
		CanTeachFemale: req.CanTeachFemale,
		Status:         models.ApplicationPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.applications.Create(ctx, application); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher application")
	}

	s.recordTransition("create", "ok")
	s.invalidateDashboards(ctx, user.ID, managerID)
	s.logger.Info("teacher application created",
		zap.String("application_id", application.ID),
		zap.String("school_id", school.ID))
	return application, nil
}

// PendingTeachers returns the manager's teacher application queue annotated
// with each candidate's document completeness.
func (s *ApprovalService) PendingTeachers(ctx context.Context, managerID string) ([]PendingTeacherApplication, error) {
	school, err := s.ownSchool(ctx, managerID)
	if err != nil {
		return nil, err
	}
	applications, err := s.applications.ListPendingBySchool(ctx, school.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher applications")
	}

	queue := make([]PendingTeacherApplication, 0, len(applications))
	for _, a := range applications {
		kinds, err := s.docs.ListKindsByUser(ctx, a.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
		}
		completeness := catalog.Evaluate(models.RoleTeacher, kinds)
		queue = append(queue, PendingTeacherApplication{
			TeacherApplicationDetail: a,
			DocumentsComplete:        completeness.Complete,
			MissingDocuments:         completeness.Missing,
		})
	}
	return queue, nil
}

// ApproveTeacher accepts a pending application and promotes the candidate
// to teacher. Acceptance is gated on the teacher checklist being complete.
func (s *ApprovalService) ApproveTeacher(ctx context.Context, managerID, applicationID string) error {
	school, err := s.ownSchool(ctx, managerID)
	if err != nil {
		return err
	}

	application, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher application not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if application.SchoolID != school.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "application belongs to another school")
	}
	if application.Status != models.ApplicationPending {
		s.recordTransition("approve", "invalid_state")
		return appErrors.Clone(appErrors.ErrInvalidState, "application is already approved")
	}

	kinds, err := s.docs.ListKindsByUser(ctx, application.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	if !catalog.Evaluate(models.RoleTeacher, kinds).Complete {
		s.recordTransition("approve", "precondition_failed")
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "candidate documents are incomplete")
	}

	ok, err := s.applications.Approve(ctx, applicationID, time.Now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve application")
	}
	if !ok {
		s.recordTransition("approve", "invalid_state")
		return appErrors.Clone(appErrors.ErrInvalidState, "application is already approved")
	}

	if _, err := s.users.UpdateRole(ctx, application.UserID, []models.UserRole{models.RoleGuest}, models.RoleTeacher); err != nil {
		s.logger.Error("failed to promote user to teacher",
			zap.String("user_id", application.UserID), zap.Error(err))
	}

	s.recordTransition("approve", "ok")
	s.invalidateDashboards(ctx, application.UserID, managerID)
	s.logger.Info("teacher application approved",
		zap.String("application_id", applicationID),
		zap.String("manager_id", managerID))
	return nil
}

func (s *ApprovalService) ownSchool(ctx context.Context, managerID string) (*models.DrivingSchool, error) {
	school, err := s.schools.FindByManager(ctx, managerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not own a school")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

func (s *ApprovalService) recordTransition(transition, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordTransition("teacher_application", transition, outcome)
	}
}

func (s *ApprovalService) invalidateDashboards(ctx context.Context, userIDs ...string) {
	if s.cache == nil {
		return
	}
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if err := s.cache.Invalidate(ctx, DashboardCacheKey(id)); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", zap.String("user_id", id), zap.Error(err))
		}
	}
}
