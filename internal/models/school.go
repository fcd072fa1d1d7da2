package models

import "time"

// DrivingSchool is owned by exactly one manager. Ownership never changes.
type DrivingSchool struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	State       string    `db:"state" json:"state"`
	Address     string    `db:"address" json:"address"`
	Price       float64   `db:"price" json:"price"`
	Description string    `db:"description" json:"description"`
	ManagerID   string    `db:"manager_id" json:"manager_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SchoolFilter provides filters for listing driving schools.
type SchoolFilter struct {
	State    string
	Page     int
	PageSize int
}
