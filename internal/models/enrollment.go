package models

import "time"

// PaymentStatus tracks the payment collaborator's reported state.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// EnrollmentStatus is the top-level lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentPendingPayment   EnrollmentStatus = "pending_payment"
	EnrollmentPendingDocuments EnrollmentStatus = "pending_documents"
	EnrollmentPendingApproval  EnrollmentStatus = "pending_approval"
	EnrollmentApproved         EnrollmentStatus = "approved"
	EnrollmentRejected         EnrollmentStatus = "rejected"
	EnrollmentCompleted        EnrollmentStatus = "completed"
)

// Terminal reports whether no further transitions are possible.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentRejected || s == EnrollmentCompleted
}

// Enrollment links one student to one school. Rows are never deleted;
// rejected and completed enrollments are retained as history.
type Enrollment struct {
	ID              string           `db:"id" json:"id"`
	StudentID       string           `db:"student_id" json:"student_id"`
	SchoolID        string           `db:"school_id" json:"school_id"`
	Amount          float64          `db:"amount" json:"amount"`
	PaymentStatus   PaymentStatus    `db:"payment_status" json:"payment_status"`
	Status          EnrollmentStatus `db:"enrollment_status" json:"enrollment_status"`
	RejectionReason *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	ApprovedAt      *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	CompletedAt     *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and school info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	SchoolName  string `db:"school_name" json:"school_name"`
	SchoolState string `db:"school_state" json:"school_state"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	SchoolID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
