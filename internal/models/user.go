package models

import "time"

// UserRole represents the available roles on the platform.
type UserRole string

const (
	RoleGuest   UserRole = "guest"
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleManager UserRole = "manager"
)

// Gender is used for teacher/student pairing preferences.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// User represents a platform account stored in the users table.
//
// Accounts start as guests. The role only changes through lifecycle
// events: enrolling promotes a guest to student, registering a school
// promotes to manager, an accepted teacher application promotes to teacher.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     string    `db:"phone" json:"phone"`
	State     string    `db:"state" json:"state"`
	Gender    Gender    `db:"gender" json:"gender"`
	Role      UserRole  `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
