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

// TeacherApplicationRepository handles persistence of teacher applications.
type TeacherApplicationRepository struct {
	db *sqlx.DB
}

// NewTeacherApplicationRepository constructs the repository.
func NewTeacherApplicationRepository(db *sqlx.DB) *TeacherApplicationRepository {
	return &TeacherApplicationRepository{db: db}
}

const applicationColumns = `id, user_id, school_id, can_teach_male, can_teach_female, approval_status, created_at, approved_at`

// Create persists a new teacher application in pending status.
func (r *TeacherApplicationRepository) Create(ctx context.Context, application *models.TeacherApplication) error {
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	if application.CreatedAt.IsZero() {
		application.CreatedAt = time.Now().UTC()
	}
	if application.Status == "" {
		application.Status = models.ApplicationPending
	}
	const query = `INSERT INTO teacher_applications (id, user_id, school_id, can_teach_male, can_teach_female, approval_status, created_at)
        VALUES (:id, :user_id, :school_id, :can_teach_male, :can_teach_female, :approval_status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, application); err != nil {
		return fmt.Errorf("create teacher application: %w", err)
	}
	return nil
}

// FindByID returns an application by its ID.
func (r *TeacherApplicationRepository) FindByID(ctx context.Context, id string) (*models.TeacherApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM teacher_applications WHERE id = $1`, applicationColumns)
	var application models.TeacherApplication
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// ExistsForUserAndSchool checks for a prior application at the school.
func (r *TeacherApplicationRepository) ExistsForUserAndSchool(ctx context.Context, userID, schoolID string) (bool, error) {
	const query = `SELECT 1 FROM teacher_applications WHERE user_id = $1 AND school_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, schoolID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher application: %w", err)
	}
	return true, nil
}

// ListPendingBySchool returns pending applications with user info.
func (r *TeacherApplicationRepository) ListPendingBySchool(ctx context.Context, schoolID string) ([]models.TeacherApplicationDetail, error) {
	const query = `SELECT a.id, a.user_id, a.school_id, a.can_teach_male, a.can_teach_female, a.approval_status, a.created_at, a.approved_at,
        u.full_name AS teacher_name, u.email AS teacher_email
        FROM teacher_applications a
        LEFT JOIN users u ON u.id = a.user_id
        WHERE a.school_id = $1 AND a.approval_status = $2
        ORDER BY a.created_at ASC`
	var applications []models.TeacherApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, schoolID, models.ApplicationPending); err != nil {
		return nil, fmt.Errorf("list pending teacher applications: %w", err)
	}
	return applications, nil
}

// ListBySchool returns every application for a school with user info.
func (r *TeacherApplicationRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.TeacherApplicationDetail, error) {
	const query = `SELECT a.id, a.user_id, a.school_id, a.can_teach_male, a.can_teach_female, a.approval_status, a.created_at, a.approved_at,
        u.full_name AS teacher_name, u.email AS teacher_email
        FROM teacher_applications a
        LEFT JOIN users u ON u.id = a.user_id
        WHERE a.school_id = $1
        ORDER BY a.created_at ASC`
	var applications []models.TeacherApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, schoolID); err != nil {
		return nil, fmt.Errorf("list teacher applications: %w", err)
	}
	return applications, nil
}

// FindLatestByUser returns the user's most recent application.
func (r *TeacherApplicationRepository) FindLatestByUser(ctx context.Context, userID string) (*models.TeacherApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM teacher_applications WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, applicationColumns)
	var application models.TeacherApplication
	if err := r.db.GetContext(ctx, &application, query, userID); err != nil {
		return nil, err
	}
	return &application, nil
}

// Approve transitions pending to approved. Returns false when the
// application already left pending.
func (r *TeacherApplicationRepository) Approve(ctx context.Context, id string, approvedAt time.Time) (bool, error) {
	const query = `UPDATE teacher_applications SET approval_status = $2, approved_at = $3
        WHERE id = $1 AND approval_status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.ApplicationApproved, approvedAt, models.ApplicationPending)
	if err != nil {
		return false, fmt.Errorf("approve teacher application: %w", err)
	}
	return rowsAffected(res)
}
