package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ryadh-dz/autoecole-api/internal/models"
)

// SchoolRepository handles persistence of driving schools.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs the repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

const schoolColumns = `id, name, state, address, price, description, manager_id, created_at`

// Create persists a new driving school.
func (r *SchoolRepository) Create(ctx context.Context, school *models.DrivingSchool) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	if school.CreatedAt.IsZero() {
		school.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO driving_schools (id, name, state, address, price, description, manager_id, created_at)
        VALUES (:id, :name, :state, :address, :price, :description, :manager_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// FindByID returns a school by its ID.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.DrivingSchool, error) {
	query := fmt.Sprintf(`SELECT %s FROM driving_schools WHERE id = $1`, schoolColumns)
	var school models.DrivingSchool
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// FindByManager returns the school owned by the given manager, if any.
func (r *SchoolRepository) FindByManager(ctx context.Context, managerID string) (*models.DrivingSchool, error) {
	query := fmt.Sprintf(`SELECT %s FROM driving_schools WHERE manager_id = $1`, schoolColumns)
	var school models.DrivingSchool
	if err := r.db.GetContext(ctx, &school, query, managerID); err != nil {
		return nil, err
	}
	return &school, nil
}

// ExistsForManager reports whether the manager already owns a school.
func (r *SchoolRepository) ExistsForManager(ctx context.Context, managerID string) (bool, error) {
	const query = `SELECT 1 FROM driving_schools WHERE manager_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, managerID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check school ownership: %w", err)
	}
	return true, nil
}

// List returns schools filtered by state with pagination.
func (r *SchoolRepository) List(ctx context.Context, filter models.SchoolFilter) ([]models.DrivingSchool, int, error) {
	var conditions []string
	var args []interface{}

	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, filter.State)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM driving_schools%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		schoolColumns, clause, size, offset)

	var schools []models.DrivingSchool
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schools: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM driving_schools" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schools: %w", err)
	}
	return schools, total, nil
}
