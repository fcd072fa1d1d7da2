package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryadh-dz/autoecole-api/internal/catalog"
	"github.com/ryadh-dz/autoecole-api/internal/models"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
)

type enrollmentRepository interface {
	CreateWithCourses(ctx context.Context, enrollment *models.Enrollment, courses []models.Course) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsForStudentAndSchool(ctx context.Context, studentID, schoolID string) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	RecordPayment(ctx context.Context, id string) (bool, error)
	AdvanceToApprovalQueue(ctx context.Context, id string) (bool, error)
	Approve(ctx context.Context, id string, approvedAt time.Time) (bool, error)
	Reject(ctx context.Context, id, reason string) (bool, error)
}

type enrollmentCourseRepository interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Course, error)
	FindByEnrollmentAndType(ctx context.Context, enrollmentID string, courseType models.CourseType) (*models.Course, error)
	Unlock(ctx context.Context, id string) (bool, error)
}

type enrollmentSchoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.DrivingSchool, error)
}

type enrollmentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, from []models.UserRole, to models.UserRole) (bool, error)
}

type documentKindLister interface {
	ListKindsByUser(ctx context.Context, userID string) ([]models.DocumentKind, error)
}

// CourseTotals fixes the session count per course type for new enrollments.
type CourseTotals struct {
	Theory int
	Park   int
	Road   int
}

// For returns the session total for a course type.
func (t CourseTotals) For(courseType models.CourseType) int {
	switch courseType {
	case models.CourseTheory:
		return t.Theory
	case models.CoursePark:
		return t.Park
	case models.CourseRoad:
		return t.Road
	}
	return 0
}

// EnrollmentView bundles an enrollment with its courses and the student's
// document completeness for detail responses.
type EnrollmentView struct {
	Enrollment models.EnrollmentDetail `json:"enrollment"`
	Courses    []models.Course         `json:"courses"`
	Documents  catalog.Completeness    `json:"documents"`
}

// EnrollmentService drives the enrollment lifecycle. Every transition is a
// conditional single-statement update in the repository; a zero-row result
// means the observed state was stale and surfaces as an invalid-state error.
type EnrollmentService struct {
	repo    enrollmentRepository
	courses enrollmentCourseRepository
	schools enrollmentSchoolRepository
	users   enrollmentUserRepository
	docs    documentKindLister
	totals  CourseTotals
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(
	repo enrollmentRepository,
	courses enrollmentCourseRepository,
	schools enrollmentSchoolRepository,
	users enrollmentUserRepository,
	docs documentKindLister,
	totals CourseTotals,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:    repo,
		courses: courses,
		schools: schools,
		users:   users,
		docs:    docs,
		totals:  totals,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// Enroll registers the caller at a school. The enrollment starts in
// pending_payment with all three courses locked. A guest caller is promoted
// to student.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, schoolID string) (*models.Enrollment, error) {
	user, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleGuest && user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only guests and students can enroll")
	}

	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "driving school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	exists, err := s.repo.ExistsForStudentAndSchool(ctx, studentID, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this school")
	}

	if user.Role == models.RoleGuest {
		if _, err := s.users.UpdateRole(ctx, studentID, []models.UserRole{models.RoleGuest}, models.RoleStudent); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote user to student")
		}
	}

	enrollment := &models.Enrollment{
		ID:            uuid.NewString(),
		StudentID:     studentID,
		SchoolID:      schoolID,
		Amount:        school.Price,
		PaymentStatus: models.PaymentPending,
		Status:        models.EnrollmentPendingPayment,
		CreatedAt:     time.Now().UTC(),
	}
	courses := make([]models.Course, 0, len(models.CourseSequence))
	for _, courseType := range models.CourseSequence {
		courses = append(courses, models.Course{
			ID:            uuid.NewString(),
			EnrollmentID:  enrollment.ID,
			Type:          courseType,
			Status:        models.CourseLocked,
			TotalSessions: s.totals.For(courseType),
			ExamStatus:    models.ExamNone,
			UpdatedAt:     enrollment.CreatedAt,
		})
	}

	if err := s.repo.CreateWithCourses(ctx, enrollment, courses); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.recordTransition("create", "ok")
	s.invalidateDashboards(ctx, studentID, school.ManagerID)
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", studentID),
		zap.String("school_id", schoolID))
	return enrollment, nil
}

// RecordPayment acknowledges the payment collaborator's confirmation and
// moves pending_payment to pending_documents. Confirmations arriving after
// the move already happened are a no-op; confirmations on decided
// enrollments are rejected.
func (s *EnrollmentService) RecordPayment(ctx context.Context, actorID, enrollmentID string) error {
	enrollment, err := s.load(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if enrollment.StudentID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}

	switch enrollment.Status {
	case models.EnrollmentPendingDocuments, models.EnrollmentPendingApproval:
		return nil
	case models.EnrollmentPendingPayment:
	default:
		s.recordTransition("record_payment", "invalid_state")
		return appErrors.Clone(appErrors.ErrInvalidState, "enrollment is already decided")
	}

	ok, err := s.repo.RecordPayment(ctx, enrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	if !ok {
		// Lost the race; a concurrent confirmation may already have landed.
		fresh, err := s.load(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if fresh.Status == models.EnrollmentPendingDocuments || fresh.Status == models.EnrollmentPendingApproval {
			return nil
		}
		s.recordTransition("record_payment", "invalid_state")
		return appErrors.Clone(appErrors.ErrInvalidState, "enrollment is already decided")
	}

	s.recordTransition("record_payment", "ok")
	s.invalidateDashboards(ctx, enrollment.StudentID)
	return nil
}

// Approve moves a pending_approval enrollment to approved and unlocks the
// theory course. Only the manager owning the school may approve, and the
// student's documents must be complete.
func (s *EnrollmentService) Approve(ctx context.Context, managerID, enrollmentID string) error {
	enrollment, school, err := s.loadForDecision(ctx, managerID, enrollmentID)
	if err != nil {
		return err
	}

	if enrollment.Status == models.EnrollmentPendingDocuments {
		s.recordTransition("approve", "precondition_failed")
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student documents are incomplete")
	}
	if enrollment.Status != models.EnrollmentPendingApproval {
		s.recordTransition("approve", "invalid_state")
		return appErrors.Clone(appErrors.ErrInvalidState, "enrollment is not awaiting approval")
	}

	ok, err := s.repo.Approve(ctx, enrollmentID, time.Now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve enrollment")
	}
	if !ok {
		s.recordTransition("approve", "invalid_state")
		return appErrors.Clone(appErrors.ErrInvalidState, "enrollment is not awaiting approval")
	}

	theory, err := s.courses.FindByEnrollmentAndType(ctx, enrollmentID, models.CourseTheory)
	if err != nil {
		s.logger.Error("theory course missing after approval",
			zap.String("enrollment_id", enrollmentID), zap.Error(err))
	} else if _, err := s.courses.Unlock(ctx, theory.ID); err != nil {
		s.logger.Error("failed to unlock theory course",
			zap.String("enrollment_id", enrollmentID), zap.Error(err))
	}

	s.recordTransition("approve", "ok")
	s.invalidateDashboards(ctx, enrollment.StudentID, school.ManagerID)
	s.logger.Info("enrollment approved",
		zap.String("enrollment_id", enrollmentID),
		zap.String("manager_id", managerID))
	return nil
}

// Reject moves a pending_approval enrollment to rejected with a mandatory
// reason. Rejected enrollments are terminal and retained as history.
func (s *EnrollmentService) Reject(ctx context.Context, managerID, enrollmentID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return appErrors.Clone(appErrors.ErrInvalidInput, "rejection reason is required")
	}

	enrollment, school, err := s.loadForDecision(ctx, managerID, enrollmentID)
	if err != nil {
		return err
	}
	if enrollment.Status != models.EnrollmentPendingApproval {
		s.recordTransition("reject", "invalid_state")
		return appErrors.Clone(appErrors.ErrInvalidState, "enrollment is not awaiting approval")
	}

	ok, err := s.repo.Reject(ctx, enrollmentID, reason)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject enrollment")
	}
	if !ok {
		s.recordTransition("reject", "invalid_state")
		return appErrors.Clone(appErrors.ErrInvalidState, "enrollment is not awaiting approval")
	}

	s.recordTransition("reject", "ok")
	s.invalidateDashboards(ctx, enrollment.StudentID, school.ManagerID)
	s.logger.Info("enrollment rejected",
		zap.String("enrollment_id", enrollmentID),
		zap.String("manager_id", managerID))
	return nil
}

// Get returns the enrollment with its courses and document completeness.
// Visible to the enrolled student and the school's manager.
func (s *EnrollmentService) Get(ctx context.Context, actorID string, actorRole models.UserRole, enrollmentID string) (*EnrollmentView, error) {
	detail, err := s.repo.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if detail.StudentID != actorID {
		if actorRole != models.RoleManager {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
		}
		school, err := s.schools.FindByID(ctx, detail.SchoolID)
		if err != nil || school.ManagerID != actorID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another school")
		}
	}

	completeness, err := s.deriveStatus(ctx, &detail.Enrollment)
	if err != nil {
		return nil, err
	}

	courses, err := s.courses.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	return &EnrollmentView{Enrollment: *detail, Courses: courses, Documents: completeness}, nil
}

// ListMine returns the caller's enrollments, newest first.
func (s *EnrollmentService) ListMine(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	for i := range enrollments {
		if _, err := s.deriveStatus(ctx, &enrollments[i]); err != nil {
			return nil, err
		}
	}
	return enrollments, nil
}

func (s *EnrollmentService) load(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// loadForDecision loads an enrollment for an approve/reject call, verifies
// school ownership, and applies the lazy document derivation first so the
// manager decides on the freshest state.
func (s *EnrollmentService) loadForDecision(ctx context.Context, managerID, enrollmentID string) (*models.Enrollment, *models.DrivingSchool, error) {
	enrollment, err := s.load(ctx, enrollmentID)
	if err != nil {
		return nil, nil, err
	}
	school, err := s.schools.FindByID(ctx, enrollment.SchoolID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	if school.ManagerID != managerID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another school")
	}
	if _, err := s.deriveStatus(ctx, enrollment); err != nil {
		return nil, nil, err
	}
	return enrollment, school, nil
}

// deriveStatus advances pending_documents to pending_approval when the
// student's checklist is complete. The move is evaluated on read, never
// ahead of time, and persisted through a conditional update so concurrent
// readers cannot double apply it.
func (s *EnrollmentService) deriveStatus(ctx context.Context, enrollment *models.Enrollment) (catalog.Completeness, error) {
	kinds, err := s.docs.ListKindsByUser(ctx, enrollment.StudentID)
	if err != nil {
		return catalog.Completeness{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	completeness := catalog.Evaluate(models.RoleStudent, kinds)

	if enrollment.Status != models.EnrollmentPendingDocuments || !completeness.Complete {
		return completeness, nil
	}
	ok, err := s.repo.AdvanceToApprovalQueue(ctx, enrollment.ID)
	if err != nil {
		return completeness, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance enrollment")
	}
	if ok {
		s.recordTransition("advance_to_approval", "ok")
	}
	// A concurrent reader may have applied the same move; either way the
	// enrollment is now awaiting approval.
	enrollment.Status = models.EnrollmentPendingApproval
	return completeness, nil
}

func (s *EnrollmentService) recordTransition(transition, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordTransition("enrollment", transition, outcome)
	}
}

func (s *EnrollmentService) invalidateDashboards(ctx context.Context, userIDs ...string) {
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
