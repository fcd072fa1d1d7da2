package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryadh-dz/autoecole-api/internal/models"
)

type staticCertificateLinker struct {
	urls map[string]string
}

func (m *staticCertificateLinker) SignedURL(enrollmentID string) (string, time.Time, bool) {
	url, ok := m.urls[enrollmentID]
	return url, time.Now().Add(time.Hour), ok
}

func newDashboardFixture(t *testing.T) (*DashboardService, *approvalFixture) {
	t.Helper()
	f := newApprovalFixture(t)
	svc := NewDashboardService(DashboardServiceParams{
		Users:        f.users,
		Enrollments:  f.enrollRepo,
		Courses:      f.courseRepo,
		Documents:    f.docs,
		Schools:      f.schools,
		Applications: f.applications,
		Docs:         f.docs,
		Certificates: &staticCertificateLinker{urls: map[string]string{}},
	})
	return svc, f
}

func TestStudentDashboardComposition(t *testing.T) {
	svc, f := newDashboardFixture(t)
	ctx := context.Background()
	enrollment := f.enrollApproved(t, "student-1", "school-1")

	dashboard, err := svc.Get(ctx, "student-1")
	require.NoError(t, err)
	require.NotNil(t, dashboard.Student)
	assert.Nil(t, dashboard.Manager)
	assert.Nil(t, dashboard.Teacher)
	assert.Equal(t, models.RoleStudent, dashboard.User.Role)

	require.Len(t, dashboard.Student.Enrollments, 1)
	summary := dashboard.Student.Enrollments[0]
	assert.Equal(t, enrollment.ID, summary.Enrollment.ID)
	assert.Equal(t, "Ecole El Amane", summary.SchoolName)
	require.Len(t, summary.Courses, 3)
	assert.Equal(t, models.CourseAvailable, summary.Courses[0].Status)
	assert.Empty(t, summary.CertificateURL)

	assert.True(t, dashboard.Student.Completeness.Complete)
	assert.Len(t, dashboard.Student.Documents, 3)
}

func TestStudentDashboardDerivesApprovalStatus(t *testing.T) {
	svc, f := newDashboardFixture(t)
	ctx := context.Background()

	enrollment, err := f.enrollments.Enroll(ctx, "student-1", "school-1")
	require.NoError(t, err)
	require.NoError(t, f.enrollments.RecordPayment(ctx, "student-1", enrollment.ID))
	f.completeStudentDocuments("student-1")

	dashboard, err := svc.Get(ctx, "student-1")
	require.NoError(t, err)
	require.NotNil(t, dashboard.Student)
	require.Len(t, dashboard.Student.Enrollments, 1)
	assert.True(t, dashboard.Student.Completeness.Complete)
	assert.Equal(t, models.EnrollmentPendingApproval, dashboard.Student.Enrollments[0].Enrollment.Status)

	// Rendering stays read-only, the stored row moves on the next
	// stateful read instead.
	fresh, err := f.enrollRepo.FindByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentPendingDocuments, fresh.Status)
}

func TestStudentDashboardLinksCertificate(t *testing.T) {
	svc, f := newDashboardFixture(t)
	linker := &staticCertificateLinker{urls: map[string]string{}}
	svc.certificates = linker
	ctx := context.Background()

	enrollment := f.enrollApproved(t, "student-1", "school-1")
	for _, courseType := range models.CourseSequence {
		course := courseByType(t, f.lifecycleFixture, enrollment.ID, courseType)
		passCourse(t, f.lifecycleFixture, "student-1", course.ID)
	}
	linker.urls[enrollment.ID] = "signed-token"

	dashboard, err := svc.Get(ctx, "student-1")
	require.NoError(t, err)
	require.Len(t, dashboard.Student.Enrollments, 1)
	assert.Equal(t, models.EnrollmentCompleted, dashboard.Student.Enrollments[0].Enrollment.Status)
	assert.Equal(t, "signed-token", dashboard.Student.Enrollments[0].CertificateURL)
}

func TestManagerDashboardCounts(t *testing.T) {
	svc, f := newDashboardFixture(t)
	ctx := context.Background()

	approved := f.enrollApproved(t, "student-1", "school-1")
	_ = approved
	pending, err := f.enrollments.Enroll(ctx, "guest-1", "school-1")
	require.NoError(t, err)
	require.NoError(t, f.enrollments.RecordPayment(ctx, "guest-1", pending.ID))
	f.completeStudentDocuments("guest-1")
	_, err = f.enrollments.Get(ctx, "guest-1", models.RoleStudent, pending.ID)
	require.NoError(t, err)

	dashboard, err := svc.Get(ctx, "manager-1")
	require.NoError(t, err)
	require.NotNil(t, dashboard.Manager)
	assert.Equal(t, "school-1", dashboard.Manager.School.ID)
	assert.Equal(t, 2, dashboard.Manager.TotalEnrollments)
	assert.Equal(t, 1, dashboard.Manager.PendingEnrollments)
	assert.Equal(t, 1, dashboard.Manager.ActiveStudents)
	assert.Zero(t, dashboard.Manager.Graduates)
}

func TestManagerDashboardTeacherRoster(t *testing.T) {
	svc, f := newDashboardFixture(t)
	ctx := context.Background()

	_, err := f.approvals.AddTeacher(ctx, "manager-1", AddTeacherRequest{
		Email:        "lina@example.com",
		CanTeachMale: true,
	})
	require.NoError(t, err)

	dashboard, err := svc.Get(ctx, "manager-1")
	require.NoError(t, err)
	require.NotNil(t, dashboard.Manager)
	require.Len(t, dashboard.Manager.Teachers, 1)
	roster := dashboard.Manager.Teachers[0]
	assert.Equal(t, "lina@example.com", roster.Application.TeacherEmail)
	assert.False(t, roster.DocumentsComplete)
}

func TestTeacherDashboardShowsApplication(t *testing.T) {
	svc, f := newDashboardFixture(t)
	ctx := context.Background()

	application, err := f.approvals.AddTeacher(ctx, "manager-1", AddTeacherRequest{
		Email:        "lina@example.com",
		CanTeachMale: true,
	})
	require.NoError(t, err)
	f.completeTeacherDocuments("guest-1")
	require.NoError(t, f.approvals.ApproveTeacher(ctx, "manager-1", application.ID))

	dashboard, err := svc.Get(ctx, "guest-1")
	require.NoError(t, err)
	require.NotNil(t, dashboard.Teacher)
	require.NotNil(t, dashboard.Teacher.Application)
	assert.Equal(t, models.ApplicationApproved, dashboard.Teacher.Application.Status)
	assert.Equal(t, "Ecole El Amane", dashboard.Teacher.SchoolName)
	assert.True(t, dashboard.Teacher.Completeness.Complete)
}

func TestGuestDashboardHasNoRoleView(t *testing.T) {
	svc, _ := newDashboardFixture(t)

	dashboard, err := svc.Get(context.Background(), "guest-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleGuest, dashboard.User.Role)
	assert.Nil(t, dashboard.Student)
	assert.Nil(t, dashboard.Manager)
	assert.Nil(t, dashboard.Teacher)
}
