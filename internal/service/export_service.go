package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ryadh-dz/autoecole-api/internal/models"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
	"github.com/ryadh-dz/autoecole-api/pkg/export"
)

type exportEnrollmentRepository interface {
	ListBySchool(ctx context.Context, schoolID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportService renders manager-facing exports of a school's enrollments.
type ExportService struct {
	enrollments exportEnrollmentRepository
	schools     approvalSchoolRepository
	csv         csvRenderer
	logger      *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(enrollments exportEnrollmentRepository, schools approvalSchoolRepository, csv csvRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{enrollments: enrollments, schools: schools, csv: csv, logger: logger}
}

// EnrollmentsCSV renders the manager's enrollments as CSV, optionally
// filtered by status.
func (s *ExportService) EnrollmentsCSV(ctx context.Context, managerID string, status models.EnrollmentStatus) ([]byte, string, error) {
	school, err := s.schools.FindByManager(ctx, managerID)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "you do not own a school")
	}

	enrollments, err := s.enrollments.ListBySchool(ctx, school.ID, status)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	dataset := export.Dataset{
		Headers: []string{"enrollment_id", "student_name", "status", "payment_status", "amount", "created_at", "approved_at", "completed_at", "rejection_reason"},
	}
	for _, e := range enrollments {
		row := map[string]string{
			"enrollment_id":  e.ID,
			"student_name":   e.StudentName,
			"status":         string(e.Status),
			"payment_status": string(e.PaymentStatus),
			"amount":         fmt.Sprintf("%.2f", e.Amount),
			"created_at":     e.CreatedAt.Format("2006-01-02"),
		}
		if e.ApprovedAt != nil {
			row["approved_at"] = e.ApprovedAt.Format("2006-01-02")
		}
		if e.CompletedAt != nil {
			row["completed_at"] = e.CompletedAt.Format("2006-01-02")
		}
		if e.RejectionReason != nil {
			row["rejection_reason"] = *e.RejectionReason
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("enrollments_%s.csv", school.ID)
	s.logger.Info("enrollments exported",
		zap.String("school_id", school.ID),
		zap.Int("rows", len(dataset.Rows)))
	return data, filename, nil
}
