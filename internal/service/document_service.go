package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryadh-dz/autoecole-api/internal/catalog"
	"github.com/ryadh-dz/autoecole-api/internal/models"
	"github.com/ryadh-dz/autoecole-api/pkg/config"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
)

type documentRepository interface {
	Replace(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, id string) (*models.Document, error)
	ListByUser(ctx context.Context, userID string) ([]models.Document, error)
	ListKindsByUser(ctx context.Context, userID string) ([]models.DocumentKind, error)
	MarkVerified(ctx context.Context, id, verifierID string, verifiedAt time.Time) (bool, error)
}

type documentStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Path(filename string) string
}

type downloadSigner interface {
	Generate(documentID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (documentID, relPath string, expiresAt time.Time, err error)
}

// DocumentList is the response shape for listing a user's documents.
type DocumentList struct {
	Documents    []models.Document    `json:"documents"`
	Completeness catalog.Completeness `json:"completeness"`
}

// SignedDownload carries a short-lived download link for a document.
type SignedDownload struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DocumentService records upload metadata and verification state. Files
// themselves live with the storage collaborator; re-uploading a kind
// replaces the previous document of that kind.
type DocumentService struct {
	repo    documentRepository
	storage documentStorage
	signer  downloadSigner
	cfg     config.DocumentsConfig
	cache   *CacheService
	logger  *zap.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(repo documentRepository, storage documentStorage, signer downloadSigner, cfg config.DocumentsConfig, cache *CacheService, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, storage: storage, signer: signer, cfg: cfg, cache: cache, logger: logger}
}

// Upload stores a document file and records its metadata. An upload of a
// kind the user already has replaces the old document, which starts
// unverified again.
func (s *DocumentService) Upload(ctx context.Context, userID string, kind models.DocumentKind, fileName, contentType string, size int64, file io.Reader) (*models.Document, error) {
	if !models.KnownDocumentKind(kind) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "unknown document type")
	}
	if !s.allowedContentType(contentType) {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "unsupported file type, use jpeg, png or pdf")
	}
	if size <= 0 || size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("file size must be between 1 byte and %d bytes", s.cfg.MaxFileSizeBytes))
	}

	id := uuid.NewString()
	storedName := fmt.Sprintf("%s_%s_%s%s", userID, kind, id, filepath.Ext(fileName))
	ref, err := s.storage.SaveStream(storedName, io.LimitReader(file, s.cfg.MaxFileSizeBytes))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document file")
	}

	doc := &models.Document{
		ID:         id,
		UserID:     userID,
		Kind:       kind,
		FileName:   fileName,
		FileSize:   size,
		FileRef:    ref,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.repo.Replace(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}

	s.invalidateDashboard(ctx, userID)
	s.logger.Info("document uploaded",
		zap.String("user_id", userID),
		zap.String("document_type", string(kind)))
	return doc, nil
}

// ListMine returns the caller's documents with completeness for their role.
func (s *DocumentService) ListMine(ctx context.Context, userID string, role models.UserRole) (*DocumentList, error) {
	docs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	kinds := make([]models.DocumentKind, 0, len(docs))
	for _, d := range docs {
		kinds = append(kinds, d.Kind)
	}
	return &DocumentList{Documents: docs, Completeness: catalog.Evaluate(role, kinds)}, nil
}

// Verify marks a document verified. Verification is one-way; verifying an
// already verified document is rejected. Manager only.
func (s *DocumentService) Verify(ctx context.Context, verifierID string, verifierRole models.UserRole, documentID string) (*models.Document, error) {
	if verifierRole != models.RoleManager {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers can verify documents")
	}
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.MarkVerified(ctx, documentID, verifierID, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify document")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "document is already verified")
	}

	s.invalidateDashboard(ctx, doc.UserID)
	return s.load(ctx, documentID)
}

// SignedURL issues an expiring download link. The owner and managers
// reviewing applications may request one.
func (s *DocumentService) SignedURL(ctx context.Context, actorID string, actorRole models.UserRole, documentID string) (*SignedDownload, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != actorID && actorRole != models.RoleManager {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "document belongs to another user")
	}

	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FileRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &SignedDownload{URL: token, ExpiresAt: expiresAt}, nil
}

// ResolveDownload validates a signed token and returns the file path to
// serve along with the document metadata.
func (s *DocumentService) ResolveDownload(ctx context.Context, token string) (string, *models.Document, error) {
	documentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return "", nil, err
	}
	if doc.FileRef != relPath {
		// The document was replaced after the link was issued.
		return "", nil, appErrors.Clone(appErrors.ErrNotFound, "document file no longer exists")
	}
	return s.storage.Path(relPath), doc, nil
}

func (s *DocumentService) load(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) allowedContentType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range s.cfg.AllowedMIMEs {
		if contentType == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (s *DocumentService) invalidateDashboard(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, DashboardCacheKey(userID)); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}
