package models

import "time"

// DocumentKind enumerates the uploadable document types.
type DocumentKind string

const (
	DocProfilePhoto       DocumentKind = "profile_photo"
	DocIDCard             DocumentKind = "id_card"
	DocMedicalCertificate DocumentKind = "medical_certificate"
	DocDrivingLicense     DocumentKind = "driving_license"
	DocTeachingLicense    DocumentKind = "teaching_license"
)

// KnownDocumentKind reports whether the kind is one the platform accepts.
func KnownDocumentKind(kind DocumentKind) bool {
	switch kind {
	case DocProfilePhoto, DocIDCard, DocMedicalCertificate, DocDrivingLicense, DocTeachingLicense:
		return true
	}
	return false
}

// Document records upload metadata for one user document. The file itself
// lives with the storage collaborator; the row is immutable after upload
// except for the verification fields, which only flip one way.
type Document struct {
	ID         string       `db:"id" json:"id"`
	UserID     string       `db:"user_id" json:"user_id"`
	Kind       DocumentKind `db:"document_type" json:"document_type"`
	FileName   string       `db:"file_name" json:"file_name"`
	FileSize   int64        `db:"file_size" json:"file_size"`
	FileRef    string       `db:"file_ref" json:"-"`
	IsVerified bool         `db:"is_verified" json:"is_verified"`
	VerifiedBy *string      `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt *time.Time   `db:"verified_at" json:"verified_at,omitempty"`
	UploadedAt time.Time    `db:"uploaded_at" json:"uploaded_at"`
}
