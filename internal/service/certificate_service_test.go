package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryadh-dz/autoecole-api/internal/models"
	"github.com/ryadh-dz/autoecole-api/pkg/config"
	"github.com/ryadh-dz/autoecole-api/pkg/export"
	"github.com/ryadh-dz/autoecole-api/pkg/jobs"
	"github.com/ryadh-dz/autoecole-api/pkg/storage"
)

func newCertificateFixture(t *testing.T) (*CertificateService, *lifecycleFixture) {
	t.Helper()
	f := newLifecycleFixture(t)
	f.enrollRepo.students["student-1"] = "Amine B"
	f.enrollRepo.schools["school-1"] = "Ecole El Amane"

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("cert-secret", time.Hour)
	svc := NewCertificateService(f.enrollRepo, f.courseRepo, export.NewCertificateRenderer(), files, signer,
		config.CertificatesConfig{Enabled: true, WorkerConcurrency: 1, WorkerRetries: 1}, nil)
	return svc, f
}

func completeEnrollment(t *testing.T, f *lifecycleFixture) *models.Enrollment {
	t.Helper()
	enrollment := f.enrollApproved(t, "student-1", "school-1")
	for _, courseType := range models.CourseSequence {
		course := courseByType(t, f, enrollment.ID, courseType)
		passCourse(t, f, "student-1", course.ID)
	}
	fresh, err := f.enrollRepo.FindByID(context.Background(), enrollment.ID)
	require.NoError(t, err)
	return fresh
}

func TestCertificateRenderAndSignedURL(t *testing.T) {
	svc, f := newCertificateFixture(t)
	enrollment := completeEnrollment(t, f)

	_, _, ok := svc.SignedURL(enrollment.ID)
	assert.False(t, ok, "no link before rendering")

	err := svc.handle(context.Background(), jobs.Job{Type: "completion_certificate", Payload: enrollment.ID})
	require.NoError(t, err)

	token, expiresAt, ok := svc.SignedURL(enrollment.ID)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	path, err := svc.ResolveDownload(token)
	require.NoError(t, err)
	assert.Contains(t, path, certificateFileName(enrollment.ID))
}

func TestCertificateSkipsIncompleteEnrollment(t *testing.T) {
	svc, f := newCertificateFixture(t)
	enrollment := f.enrollApproved(t, "student-1", "school-1")

	err := svc.handle(context.Background(), jobs.Job{Type: "completion_certificate", Payload: enrollment.ID})
	require.NoError(t, err)

	_, _, ok := svc.SignedURL(enrollment.ID)
	assert.False(t, ok)
}

func TestCertificateHandleRejectsBadPayload(t *testing.T) {
	svc, _ := newCertificateFixture(t)

	err := svc.handle(context.Background(), jobs.Job{Type: "completion_certificate", Payload: 42})
	require.Error(t, err)
}

func TestResolveDownloadRejectsTamperedToken(t *testing.T) {
	svc, f := newCertificateFixture(t)
	enrollment := completeEnrollment(t, f)
	require.NoError(t, svc.handle(context.Background(), jobs.Job{Payload: enrollment.ID}))

	token, _, ok := svc.SignedURL(enrollment.ID)
	require.True(t, ok)

	_, err := svc.ResolveDownload(token + "x")
	require.Error(t, err)
}
