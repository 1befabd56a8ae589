package models

import "time"

// UserRole represents the available roles.
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleFaculty UserRole = "FACULTY"
)

// Valid returns true when the role is a supported value.
func (r UserRole) Valid() bool {
	return r == RoleStudent || r == RoleFaculty
}

// User is an account row. Students additionally carry roll number and section.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	RollNumber   *string   `db:"roll_number" json:"roll_number,omitempty"`
	Section      *string   `db:"section" json:"section,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Student is the roster projection of a user enrolled in a class.
type Student struct {
	UserID     string  `db:"user_id" json:"user_id"`
	Name       string  `db:"name" json:"name"`
	Email      string  `db:"email" json:"email"`
	RollNumber *string `db:"roll_number" json:"roll_number,omitempty"`
	Section    *string `db:"section" json:"section,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
