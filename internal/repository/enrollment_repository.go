package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ryadh-dz/autoecole-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments and their
// lifecycle transitions. Every status write is a compare-and-set so
// concurrent callers cannot both win the same transition.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, school_id, amount, payment_status, enrollment_status, rejection_reason, created_at, approved_at, completed_at`

// CreateWithCourses persists a new enrollment together with its course
// rows in one transaction. All courses start locked.
func (r *EnrollmentRepository) CreateWithCourses(ctx context.Context, enrollment *models.Enrollment, courses []models.Course) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	if enrollment.PaymentStatus == "" {
		enrollment.PaymentStatus = models.PaymentPending
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentPendingPayment
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const enrollmentQuery = `INSERT INTO enrollments (id, student_id, school_id, amount, payment_status, enrollment_status, created_at)
        VALUES (:id, :student_id, :school_id, :amount, :payment_status, :enrollment_status, :created_at)`
	if _, err := tx.NamedExecContext(ctx, enrollmentQuery, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}

	const courseQuery = `INSERT INTO courses (id, enrollment_id, course_type, status, completed_sessions, total_sessions, exam_status, updated_at)
        VALUES (:id, :enrollment_id, :course_type, :status, :completed_sessions, :total_sessions, :exam_status, :updated_at)`
	for i := range courses {
		if courses[i].ID == "" {
			courses[i].ID = uuid.NewString()
		}
		courses[i].EnrollmentID = enrollment.ID
		if courses[i].UpdatedAt.IsZero() {
			courses[i].UpdatedAt = enrollment.CreatedAt
		}
		if _, err := tx.NamedExecContext(ctx, courseQuery, courses[i]); err != nil {
			return fmt.Errorf("create course %s: %w", courses[i].Type, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and school info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.school_id, e.amount, e.payment_status, e.enrollment_status, e.rejection_reason, e.created_at, e.approved_at, e.completed_at,
        u.full_name AS student_name, s.name AS school_name, s.state AS school_state
        FROM enrollments e
        LEFT JOIN users u ON u.id = e.student_id
        LEFT JOIN driving_schools s ON s.id = e.school_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsForStudentAndSchool checks whether the student already enrolled at
// the school, in any state.
func (r *EnrollmentRepository) ExistsForStudentAndSchool(ctx context.Context, studentID, schoolID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND school_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, schoolID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// ListByStudent returns every enrollment of a student, newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 ORDER BY created_at DESC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListBySchool returns enrollments for a school, optionally filtered by status.
func (r *EnrollmentRepository) ListBySchool(ctx context.Context, schoolID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	query := `SELECT e.id, e.student_id, e.school_id, e.amount, e.payment_status, e.enrollment_status, e.rejection_reason, e.created_at, e.approved_at, e.completed_at,
        u.full_name AS student_name, s.name AS school_name, s.state AS school_state
        FROM enrollments e
        LEFT JOIN users u ON u.id = e.student_id
        LEFT JOIN driving_schools s ON s.id = e.school_id
        WHERE e.school_id = $1`
	args := []interface{}{schoolID}
	if status != "" {
		query += " AND e.enrollment_status = $2"
		args = append(args, status)
	}
	query += " ORDER BY e.created_at ASC"

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list school enrollments: %w", err)
	}
	return enrollments, nil
}

// CountBySchoolAndStatus returns the number of school enrollments in a status.
// An empty status counts all enrollments.
func (r *EnrollmentRepository) CountBySchoolAndStatus(ctx context.Context, schoolID string, status models.EnrollmentStatus) (int, error) {
	query := `SELECT COUNT(*) FROM enrollments WHERE school_id = $1`
	args := []interface{}{schoolID}
	if status != "" {
		query += " AND enrollment_status = $2"
		args = append(args, status)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count school enrollments: %w", err)
	}
	return total, nil
}

// RecordPayment marks payment completed and advances to pending_documents.
// Returns false when the enrollment was not awaiting payment.
func (r *EnrollmentRepository) RecordPayment(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE enrollments SET payment_status = $2, enrollment_status = $3
        WHERE id = $1 AND enrollment_status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.PaymentCompleted, models.EnrollmentPendingDocuments, models.EnrollmentPendingPayment)
	if err != nil {
		return false, fmt.Errorf("record payment: %w", err)
	}
	return rowsAffected(res)
}

// AdvanceToApprovalQueue moves pending_documents to pending_approval.
// Used by the lazy documents-complete derivation on reads.
func (r *EnrollmentRepository) AdvanceToApprovalQueue(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE enrollments SET enrollment_status = $2
        WHERE id = $1 AND enrollment_status = $3 AND payment_status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.EnrollmentPendingApproval, models.EnrollmentPendingDocuments, models.PaymentCompleted)
	if err != nil {
		return false, fmt.Errorf("advance enrollment: %w", err)
	}
	return rowsAffected(res)
}

// Approve transitions pending_approval to approved. Exactly one of two
// concurrent calls can succeed.
func (r *EnrollmentRepository) Approve(ctx context.Context, id string, approvedAt time.Time) (bool, error) {
	const query = `UPDATE enrollments SET enrollment_status = $2, approved_at = $3
        WHERE id = $1 AND enrollment_status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.EnrollmentApproved, approvedAt, models.EnrollmentPendingApproval)
	if err != nil {
		return false, fmt.Errorf("approve enrollment: %w", err)
	}
	return rowsAffected(res)
}

// Reject transitions pending_approval to rejected with a reason.
func (r *EnrollmentRepository) Reject(ctx context.Context, id, reason string) (bool, error) {
	const query = `UPDATE enrollments SET enrollment_status = $2, rejection_reason = $3
        WHERE id = $1 AND enrollment_status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.EnrollmentRejected, reason, models.EnrollmentPendingApproval)
	if err != nil {
		return false, fmt.Errorf("reject enrollment: %w", err)
	}
	return rowsAffected(res)
}

// Complete transitions approved to completed once every exam is passed.
func (r *EnrollmentRepository) Complete(ctx context.Context, id string, completedAt time.Time) (bool, error) {
	const query = `UPDATE enrollments SET enrollment_status = $2, completed_at = $3
        WHERE id = $1 AND enrollment_status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.EnrollmentCompleted, completedAt, models.EnrollmentApproved)
	if err != nil {
		return false, fmt.Errorf("complete enrollment: %w", err)
	}
	return rowsAffected(res)
}

func rowsAffected(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
