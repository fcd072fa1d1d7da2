package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ryadh-dz/autoecole-api/internal/models"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
)

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Course, error)
	FindByEnrollmentAndType(ctx context.Context, enrollmentID string, courseType models.CourseType) (*models.Course, error)
	Unlock(ctx context.Context, id string) (bool, error)
	ApplySession(ctx context.Context, id string, observedSessions int, newStatus models.CourseStatus, newExamStatus models.ExamStatus) (bool, error)
	ApplyExamResult(ctx context.Context, id string, score int, result models.ExamStatus, newStatus models.CourseStatus) (bool, error)
	ResetForRetake(ctx context.Context, id string) (bool, error)
}

type courseEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Complete(ctx context.Context, id string, completedAt time.Time) (bool, error)
}

type certificateEnqueuer interface {
	EnqueueForEnrollment(enrollmentID string) error
}

// CourseService drives per-course progression: session attendance, exams,
// and retakes. Exactly one course per enrollment is ever workable; the next
// one only unlocks when the previous exam is passed.
type CourseService struct {
	repo          courseRepository
	enrollments   courseEnrollmentRepository
	passThreshold int
	certificates  certificateEnqueuer
	cache         *CacheService
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(
	repo courseRepository,
	enrollments courseEnrollmentRepository,
	passThreshold int,
	certificates certificateEnqueuer,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
) *CourseService {
	if passThreshold <= 0 || passThreshold > 100 {
		passThreshold = 70
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:          repo,
		enrollments:   enrollments,
		passThreshold: passThreshold,
		certificates:  certificates,
		cache:         cache,
		metrics:       metrics,
		logger:        logger,
	}
}

// Get returns one course. Only the enrolled student can read it.
func (s *CourseService) Get(ctx context.Context, studentID, courseID string) (*models.Course, error) {
	course, _, err := s.loadOwned(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	return course, nil
}

// CompleteSession records one attended session. The last session moves the
// course to completed and opens its exam.
func (s *CourseService) CompleteSession(ctx context.Context, studentID, courseID string) (*models.Course, error) {
	course, enrollment, err := s.loadOwned(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActiveEnrollment(enrollment); err != nil {
		return nil, err
	}
	if !course.Active() {
		s.recordTransition("complete_session", "invalid_state")
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "course is not available")
	}
	if course.CompletedSessions >= course.TotalSessions {
		s.recordTransition("complete_session", "invalid_state")
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "all sessions are already completed")
	}

	newStatus := models.CourseInProgress
	newExamStatus := models.ExamNone
	if course.CompletedSessions+1 >= course.TotalSessions {
		newStatus = models.CourseCompleted
		newExamStatus = models.ExamAvailable
	}
	ok, err := s.repo.ApplySession(ctx, courseID, course.CompletedSessions, newStatus, newExamStatus)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record session")
	}
	if !ok {
		s.recordTransition("complete_session", "conflict")
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "course state changed, reload and retry")
	}

	s.recordTransition("complete_session", "ok")
	s.invalidateDashboards(ctx, studentID)
	return s.reload(ctx, courseID)
}

// SubmitExam grades the course exam. A passing score completes the course
// and unlocks the next one; passing the final course completes the
// enrollment and queues the completion certificate.
func (s *CourseService) SubmitExam(ctx context.Context, studentID, courseID string, score int) (*models.Course, error) {
	if score < 0 || score > 100 {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "exam score must be between 0 and 100")
	}
	course, enrollment, err := s.loadOwned(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActiveEnrollment(enrollment); err != nil {
		return nil, err
	}
	if course.ExamStatus != models.ExamAvailable {
		s.recordTransition("submit_exam", "invalid_state")
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "exam is not available")
	}

	result := models.ExamFailed
	newStatus := course.Status
	if score >= s.passThreshold {
		result = models.ExamPassed
		newStatus = models.CourseCompleted
	}
	ok, err := s.repo.ApplyExamResult(ctx, courseID, score, result, newStatus)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record exam result")
	}
	if !ok {
		s.recordTransition("submit_exam", "conflict")
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "exam was already graded")
	}

	s.recordTransition("submit_exam", string(result))
	if result == models.ExamPassed {
		s.afterExamPassed(ctx, course, enrollment)
	}
	s.invalidateDashboards(ctx, studentID)
	return s.reload(ctx, courseID)
}

// Retake resets a failed course so the student starts its sessions over.
// The exam clears with the sessions; nothing else about the enrollment moves.
func (s *CourseService) Retake(ctx context.Context, studentID, courseID string) (*models.Course, error) {
	course, enrollment, err := s.loadOwned(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActiveEnrollment(enrollment); err != nil {
		return nil, err
	}
	if course.ExamStatus != models.ExamFailed {
		s.recordTransition("retake", "invalid_state")
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "retake is only possible after a failed exam")
	}

	ok, err := s.repo.ResetForRetake(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset course")
	}
	if !ok {
		s.recordTransition("retake", "conflict")
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "course state changed, reload and retry")
	}

	s.recordTransition("retake", "ok")
	s.invalidateDashboards(ctx, studentID)
	return s.reload(ctx, courseID)
}

// afterExamPassed unlocks the next course in the sequence, or completes the
// enrollment when the final course passed.
func (s *CourseService) afterExamPassed(ctx context.Context, course *models.Course, enrollment *models.Enrollment) {
	next := course.Type.SequenceIndex() + 1
	if next < len(models.CourseSequence) {
		nextCourse, err := s.repo.FindByEnrollmentAndType(ctx, enrollment.ID, models.CourseSequence[next])
		if err != nil {
			s.logger.Error("next course missing after exam pass",
				zap.String("enrollment_id", enrollment.ID), zap.Error(err))
			return
		}
		if _, err := s.repo.Unlock(ctx, nextCourse.ID); err != nil {
			s.logger.Error("failed to unlock next course",
				zap.String("course_id", nextCourse.ID), zap.Error(err))
		}
		return
	}

	if !s.allCoursesPassed(ctx, enrollment.ID) {
		return
	}
	ok, err := s.enrollments.Complete(ctx, enrollment.ID, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to complete enrollment",
			zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	s.recordTransition("enrollment_completed", "ok")
	s.logger.Info("enrollment completed", zap.String("enrollment_id", enrollment.ID))
	if s.certificates != nil {
		if err := s.certificates.EnqueueForEnrollment(enrollment.ID); err != nil {
			s.logger.Warn("failed to enqueue completion certificate",
				zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		}
	}
}

func (s *CourseService) allCoursesPassed(ctx context.Context, enrollmentID string) bool {
	courses, err := s.repo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		s.logger.Error("failed to list courses", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return false
	}
	if len(courses) != len(models.CourseSequence) {
		return false
	}
	for _, c := range courses {
		if c.ExamStatus != models.ExamPassed {
			return false
		}
	}
	return true
}

func (s *CourseService) loadOwned(ctx context.Context, studentID, courseID string) (*models.Course, *models.Enrollment, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	enrollment, err := s.enrollments.FindByID(ctx, course.EnrollmentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.StudentID != studentID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another student")
	}
	return course, enrollment, nil
}

func (s *CourseService) requireActiveEnrollment(enrollment *models.Enrollment) error {
	if enrollment.Status != models.EnrollmentApproved {
		s.recordTransition("course_op", "invalid_state")
		return appErrors.Clone(appErrors.ErrInvalidState, "enrollment is not approved")
	}
	return nil
}

func (s *CourseService) reload(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload course")
	}
	return course, nil
}

func (s *CourseService) recordTransition(transition, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordTransition("course", transition, outcome)
	}
}

func (s *CourseService) invalidateDashboards(ctx context.Context, userIDs ...string) {
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
