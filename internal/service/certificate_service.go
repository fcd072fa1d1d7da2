package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryadh-dz/autoecole-api/internal/models"
	"github.com/ryadh-dz/autoecole-api/pkg/config"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
	"github.com/ryadh-dz/autoecole-api/pkg/export"
	"github.com/ryadh-dz/autoecole-api/pkg/jobs"
)

type certificateEnrollmentRepository interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

type certificateCourseRepository interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Course, error)
}

type certificateRenderer interface {
	Render(cert export.Certificate) ([]byte, error)
}

type certificateStorage interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
}

// CertificateService renders completion certificates in the background.
// Course completion enqueues a job; the worker renders the PDF and stores
// it, and the student dashboard links it through a signed URL.
type CertificateService struct {
	enrollments certificateEnrollmentRepository
	courses     certificateCourseRepository
	renderer    certificateRenderer
	storage     certificateStorage
	signer      downloadSigner
	queue       *jobs.Queue
	enabled     bool
	logger      *zap.Logger
}

// NewCertificateService constructs the certificate service and its worker
// queue. Call Start before enqueueing and Stop on shutdown.
func NewCertificateService(
	enrollments certificateEnrollmentRepository,
	courses certificateCourseRepository,
	renderer certificateRenderer,
	storage certificateStorage,
	signer downloadSigner,
	cfg config.CertificatesConfig,
	logger *zap.Logger,
) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CertificateService{
		enrollments: enrollments,
		courses:     courses,
		renderer:    renderer,
		storage:     storage,
		signer:      signer,
		enabled:     cfg.Enabled,
		logger:      logger,
	}
	s.queue = jobs.NewQueue("certificates", s.handle, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the render workers.
func (s *CertificateService) Start(ctx context.Context) {
	if s.enabled {
		s.queue.Start(ctx)
	}
}

// Stop drains the queue and stops the workers.
func (s *CertificateService) Stop() {
	if s.enabled {
		s.queue.Stop()
	}
}

// EnqueueForEnrollment queues certificate rendering for a completed
// enrollment.
func (s *CertificateService) EnqueueForEnrollment(enrollmentID string) error {
	if !s.enabled {
		return nil
	}
	return s.queue.Enqueue(jobs.Job{
		ID:       uuid.NewString(),
		Type:     "completion_certificate",
		Payload:  enrollmentID,
		Enqueued: time.Now().UTC(),
	})
}

// SignedURL returns an expiring download link for a rendered certificate.
// The third return is false while the certificate has not been rendered.
func (s *CertificateService) SignedURL(enrollmentID string) (string, time.Time, bool) {
	name := certificateFileName(enrollmentID)
	if _, err := os.Stat(s.storage.Path(name)); err != nil {
		return "", time.Time{}, false
	}
	token, expiresAt, err := s.signer.Generate(enrollmentID, name)
	if err != nil {
		s.logger.Warn("failed to sign certificate url", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return "", time.Time{}, false
	}
	return token, expiresAt, true
}

// ResolveDownload validates a signed token and returns the certificate
// file path to serve.
func (s *CertificateService) ResolveDownload(token string) (string, error) {
	enrollmentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	if relPath != certificateFileName(enrollmentID) {
		return "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
	}
	path := s.storage.Path(relPath)
	if _, err := os.Stat(path); err != nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
	}
	return path, nil
}

func (s *CertificateService) handle(ctx context.Context, job jobs.Job) error {
	enrollmentID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected certificate payload %T", job.Payload)
	}

	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		return fmt.Errorf("load enrollment %s: %w", enrollmentID, err)
	}
	if detail.Status != models.EnrollmentCompleted {
		s.logger.Warn("skipping certificate for incomplete enrollment",
			zap.String("enrollment_id", enrollmentID),
			zap.String("status", string(detail.Status)))
		return nil
	}

	courses, err := s.courses.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return fmt.Errorf("list courses %s: %w", enrollmentID, err)
	}

	completedAt := time.Now().UTC()
	if detail.CompletedAt != nil {
		completedAt = *detail.CompletedAt
	}
	cert := export.Certificate{
		StudentName: detail.StudentName,
		SchoolName:  detail.SchoolName,
		State:       detail.SchoolState,
		CompletedAt: completedAt,
	}
	for _, c := range courses {
		score := 0
		if c.ExamScore != nil {
			score = *c.ExamScore
		}
		cert.Courses = append(cert.Courses, export.CertificateCourse{
			Label:    courseLabel(c.Type),
			Sessions: c.TotalSessions,
			Score:    score,
		})
	}

	pdf, err := s.renderer.Render(cert)
	if err != nil {
		return fmt.Errorf("render certificate %s: %w", enrollmentID, err)
	}
	if _, err := s.storage.Save(certificateFileName(enrollmentID), pdf); err != nil {
		return fmt.Errorf("store certificate %s: %w", enrollmentID, err)
	}

	s.logger.Info("certificate rendered", zap.String("enrollment_id", enrollmentID))
	return nil
}

func certificateFileName(enrollmentID string) string {
	return fmt.Sprintf("certificate_%s.pdf", enrollmentID)
}

func courseLabel(courseType models.CourseType) string {
	switch courseType {
	case models.CourseTheory:
		return "Theory"
	case models.CoursePark:
		return "Parking"
	case models.CourseRoad:
		return "Road driving"
	}
	return string(courseType)
}
