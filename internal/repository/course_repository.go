package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ryadh-dz/autoecole-api/internal/models"
)

// CourseRepository handles persistence of enrollment courses. Session and
// exam writes are compare-and-set on the fields the caller read, so a
// double submit from two tabs cannot both apply.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, enrollment_id, course_type, status, completed_sessions, total_sessions, exam_status, exam_score, updated_at`

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListByEnrollment returns the enrollment's courses in precedence order.
func (r *CourseRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE enrollment_id = $1
        ORDER BY CASE course_type WHEN 'theory' THEN 0 WHEN 'park' THEN 1 ELSE 2 END`, courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment courses: %w", err)
	}
	return courses, nil
}

// FindByEnrollmentAndType returns one course of an enrollment.
func (r *CourseRepository) FindByEnrollmentAndType(ctx context.Context, enrollmentID string, courseType models.CourseType) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE enrollment_id = $1 AND course_type = $2`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, enrollmentID, courseType); err != nil {
		return nil, err
	}
	return &course, nil
}

// Unlock flips a locked course to available. Returns false when the course
// was not locked.
func (r *CourseRepository) Unlock(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE courses SET status = $2, updated_at = $3
        WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.CourseAvailable, time.Now().UTC(), models.CourseLocked)
	if err != nil {
		return false, fmt.Errorf("unlock course: %w", err)
	}
	return rowsAffected(res)
}

// ApplySession records one completed session. The write only lands when
// completed_sessions still equals the value the caller observed and the
// course is available or in progress with sessions remaining.
func (r *CourseRepository) ApplySession(ctx context.Context, id string, observedSessions int, newStatus models.CourseStatus, newExamStatus models.ExamStatus) (bool, error) {
	const query = `UPDATE courses SET completed_sessions = completed_sessions + 1, status = $2, exam_status = $3, updated_at = $4
        WHERE id = $1 AND completed_sessions = $5 AND completed_sessions < total_sessions
        AND status IN ($6, $7)`
	res, err := r.db.ExecContext(ctx, query, id, newStatus, newExamStatus, time.Now().UTC(),
		observedSessions, models.CourseAvailable, models.CourseInProgress)
	if err != nil {
		return false, fmt.Errorf("apply course session: %w", err)
	}
	return rowsAffected(res)
}

// ApplyExamResult records an exam outcome and the resulting course status.
// Only lands while the exam is still available.
func (r *CourseRepository) ApplyExamResult(ctx context.Context, id string, score int, result models.ExamStatus, newStatus models.CourseStatus) (bool, error) {
	const query = `UPDATE courses SET exam_status = $2, exam_score = $3, status = $4, updated_at = $5
        WHERE id = $1 AND exam_status = $6`
	res, err := r.db.ExecContext(ctx, query, id, result, score, newStatus, time.Now().UTC(), models.ExamAvailable)
	if err != nil {
		return false, fmt.Errorf("apply exam result: %w", err)
	}
	return rowsAffected(res)
}

// ResetForRetake returns a failed course to in_progress with zero sessions
// and a cleared exam. Only lands while the exam is still failed.
func (r *CourseRepository) ResetForRetake(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE courses SET completed_sessions = 0, status = $2, exam_status = $3, exam_score = NULL, updated_at = $4
        WHERE id = $1 AND exam_status = $5`
	res, err := r.db.ExecContext(ctx, query, id, models.CourseInProgress, models.ExamNone, time.Now().UTC(), models.ExamFailed)
	if err != nil {
		return false, fmt.Errorf("reset course for retake: %w", err)
	}
	return rowsAffected(res)
}
