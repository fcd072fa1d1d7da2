package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryadh-dz/autoecole-api/internal/models"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
)

type approvalFixture struct {
	*lifecycleFixture
	applications *fakeApplicationRepo
	approvals    *ApprovalService
}

func newApprovalFixture(t *testing.T) *approvalFixture {
	t.Helper()
	base := newLifecycleFixture(t)
	applications := newFakeApplicationRepo(base.users)
	approvals := NewApprovalService(applications, base.enrollRepo, base.schools, base.users, base.docs, nil, nil, nil)
	return &approvalFixture{lifecycleFixture: base, applications: applications, approvals: approvals}
}

func (f *approvalFixture) completeTeacherDocuments(userID string) {
	f.docs.addKinds(userID,
		models.DocProfilePhoto, models.DocIDCard,
		models.DocDrivingLicense, models.DocTeachingLicense)
}

func TestAddTeacherRequiresTeachingGroup(t *testing.T) {
	f := newApprovalFixture(t)

	_, err := f.approvals.AddTeacher(context.Background(), "manager-1", AddTeacherRequest{
		Email: "lina@example.com",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
}

func TestAddTeacherCreatesPendingApplication(t *testing.T) {
	f := newApprovalFixture(t)

	application, err := f.approvals.AddTeacher(context.Background(), "manager-1", AddTeacherRequest{
		Email:          "lina@example.com",
		CanTeachFemale: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationPending, application.Status)
	assert.Equal(t, "guest-1", application.UserID)
	assert.Equal(t, "school-1", application.SchoolID)
	assert.True(t, application.CanTeachFemale)
	assert.False(t, application.CanTeachMale)
}

func TestAddTeacherDuplicateIsConflict(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	req := AddTeacherRequest{Email: "lina@example.com", CanTeachMale: true}

	_, err := f.approvals.AddTeacher(ctx, "manager-1", req)
	require.NoError(t, err)
	_, err = f.approvals.AddTeacher(ctx, "manager-1", req)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestAddTeacherUnknownEmail(t *testing.T) {
	f := newApprovalFixture(t)

	_, err := f.approvals.AddTeacher(context.Background(), "manager-1", AddTeacherRequest{
		Email:        "nobody@example.com",
		CanTeachMale: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestApproveTeacherGatedOnDocuments(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	application, err := f.approvals.AddTeacher(ctx, "manager-1", AddTeacherRequest{
		Email:        "lina@example.com",
		CanTeachMale: true,
	})
	require.NoError(t, err)

	err = f.approvals.ApproveTeacher(ctx, "manager-1", application.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	// Student checklist is not enough for a teacher.
	f.completeStudentDocuments("guest-1")
	err = f.approvals.ApproveTeacher(ctx, "manager-1", application.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
}

func TestApproveTeacherPromotesCandidate(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	application, err := f.approvals.AddTeacher(ctx, "manager-1", AddTeacherRequest{
		Email:        "lina@example.com",
		CanTeachMale: true,
	})
	require.NoError(t, err)
	f.completeTeacherDocuments("guest-1")

	require.NoError(t, f.approvals.ApproveTeacher(ctx, "manager-1", application.ID))

	fresh, err := f.applications.FindByID(ctx, application.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationApproved, fresh.Status)
	require.NotNil(t, fresh.ApprovedAt)

	user, err := f.users.FindByID(ctx, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, user.Role)

	// The two-state machine has no way back.
	err = f.approvals.ApproveTeacher(ctx, "manager-1", application.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestApproveTeacherForbiddenForOtherSchool(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	application, err := f.approvals.AddTeacher(ctx, "manager-1", AddTeacherRequest{
		Email:        "lina@example.com",
		CanTeachMale: true,
	})
	require.NoError(t, err)
	f.completeTeacherDocuments("guest-1")

	err = f.approvals.ApproveTeacher(ctx, "manager-2", application.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestPendingEnrollmentsAnnotatesCompleteness(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()

	first, err := f.enrollments.Enroll(ctx, "student-1", "school-1")
	require.NoError(t, err)
	require.NoError(t, f.enrollments.RecordPayment(ctx, "student-1", first.ID))

	second, err := f.enrollments.Enroll(ctx, "guest-1", "school-1")
	require.NoError(t, err)
	require.NoError(t, f.enrollments.RecordPayment(ctx, "guest-1", second.ID))
	f.completeStudentDocuments("guest-1")

	queue, err := f.approvals.PendingEnrollments(ctx, "manager-1")
	require.NoError(t, err)
	require.Len(t, queue, 2)

	byID := make(map[string]PendingEnrollment, len(queue))
	for _, q := range queue {
		byID[q.ID] = q
	}
	assert.False(t, byID[first.ID].DocumentsComplete)
	assert.Len(t, byID[first.ID].MissingDocuments, 3)
	assert.Equal(t, models.EnrollmentPendingDocuments, byID[first.ID].Status)

	assert.True(t, byID[second.ID].DocumentsComplete)
	assert.Empty(t, byID[second.ID].MissingDocuments)
	assert.Equal(t, models.EnrollmentPendingApproval, byID[second.ID].Status)
}

func TestPendingQueuesRequireOwnedSchool(t *testing.T) {
	f := newApprovalFixture(t)

	_, err := f.approvals.PendingEnrollments(context.Background(), "student-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.approvals.PendingTeachers(context.Background(), "student-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
