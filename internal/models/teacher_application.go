package models

import "time"

// ApplicationStatus is the two-state machine for teacher applications.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
)

// TeacherApplication links a prospective teacher to a school. Approval is
// gated on teacher-role document completeness, like student enrollments.
type TeacherApplication struct {
	ID             string            `db:"id" json:"id"`
	UserID         string            `db:"user_id" json:"user_id"`
	SchoolID       string            `db:"school_id" json:"school_id"`
	CanTeachMale   bool              `db:"can_teach_male" json:"can_teach_male"`
	CanTeachFemale bool              `db:"can_teach_female" json:"can_teach_female"`
	Status         ApplicationStatus `db:"approval_status" json:"approval_status"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	ApprovedAt     *time.Time        `db:"approved_at" json:"approved_at,omitempty"`
}

// TeacherApplicationDetail enriches an application with user info.
type TeacherApplicationDetail struct {
	TeacherApplication
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	TeacherEmail string `db:"teacher_email" json:"teacher_email"`
}
