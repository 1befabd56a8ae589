package models

import "time"

// Class is a course taught by one faculty member.
type Class struct {
	ID        string    `db:"id" json:"class_id"`
	Name      string    `db:"name" json:"class_name"`
	FacultyID string    `db:"faculty_id" json:"faculty_id"`
	JoinCode  string    `db:"join_code" json:"join_code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Enrollment links a student to a class.
type Enrollment struct {
	ClassID   string    `db:"class_id" json:"class_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	JoinedAt  time.Time `db:"joined_at" json:"joined_at"`
}

// EnrolledClass is a student's view of one of their classes.
type EnrolledClass struct {
	Class
	FacultyName string `db:"faculty_name" json:"faculty_name"`
}

// CreateClassRequest creates a new class for the calling faculty member.
type CreateClassRequest struct {
	ClassName string `json:"class_name" validate:"required,min=2,max=120"`
}

// JoinClassRequest enrolls the calling student via a class join code.
type JoinClassRequest struct {
	JoinCode string `json:"join_code" validate:"required,len=6"`
}
