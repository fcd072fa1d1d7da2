package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryadh-dz/autoecole-api/internal/models"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
	"github.com/ryadh-dz/autoecole-api/pkg/export"
)

func TestEnrollmentsCSVRendersSchoolRows(t *testing.T) {
	f := newLifecycleFixture(t)
	f.enrollRepo.students["student-1"] = "Amine B"
	enrollment := f.enrollApproved(t, "student-1", "school-1")

	svc := NewExportService(f.enrollRepo, f.schools, export.NewCSVExporter(), nil)
	data, filename, err := svc.EnrollmentsCSV(context.Background(), "manager-1", "")
	require.NoError(t, err)

	assert.Equal(t, "enrollments_school-1.csv", filename)
	content := string(data)
	assert.Contains(t, content, "enrollment_id,student_name,status")
	assert.Contains(t, content, enrollment.ID)
	assert.Contains(t, content, "Amine B")
	assert.Contains(t, content, string(models.EnrollmentApproved))
	assert.Equal(t, 2, strings.Count(content, "\n"))
}

func TestEnrollmentsCSVFiltersByStatus(t *testing.T) {
	f := newLifecycleFixture(t)
	f.enrollApproved(t, "student-1", "school-1")
	pending, err := f.enrollments.Enroll(context.Background(), "guest-1", "school-1")
	require.NoError(t, err)

	svc := NewExportService(f.enrollRepo, f.schools, export.NewCSVExporter(), nil)
	data, _, err := svc.EnrollmentsCSV(context.Background(), "manager-1", models.EnrollmentPendingPayment)
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, pending.ID)
	assert.Equal(t, 2, strings.Count(content, "\n"))
}

func TestEnrollmentsCSVRequiresOwnedSchool(t *testing.T) {
	f := newLifecycleFixture(t)
	svc := NewExportService(f.enrollRepo, f.schools, export.NewCSVExporter(), nil)

	_, _, err := svc.EnrollmentsCSV(context.Background(), "student-1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
