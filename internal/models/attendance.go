package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "PRESENT"
	StatusLate    AttendanceStatus = "LATE"
	StatusAbsent  AttendanceStatus = "ABSENT"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent:
		return true
	default:
		return false
	}
}

// CountsPresent reports whether the status counts as attendance. LATE is
// treated the same as PRESENT in every count and merge.
func (s AttendanceStatus) CountsPresent() bool {
	return s == StatusPresent || s == StatusLate
}

// AttendanceRecord is the server-authoritative mark for one student in one
// session. StudentID can be null on legacy rows, in which case StudentName is
// the join key.
type AttendanceRecord struct {
	SessionID   int64            `db:"session_id" json:"session_id"`
	StudentID   *string          `db:"student_id" json:"student_id,omitempty"`
	StudentName string           `db:"student_name" json:"student_name"`
	Status      AttendanceStatus `db:"status" json:"attendance_status"`
	MarkedAt    *time.Time       `db:"marked_at" json:"marked_at,omitempty"`
}

// AttendanceSummary summarises counts for a student across sessions.
type AttendanceSummary struct {
	Present int     `json:"present"`
	Late    int     `json:"late"`
	Absent  int     `json:"absent"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// CodeSubmission is a student's code + optional coordinates.
type CodeSubmission struct {
	StudentID string   `json:"student_id" validate:"required"`
	Code      string   `json:"code" validate:"required"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
}

// CodeVerdict is the server's decision on a code submission. The server owns
// the within-radius call; clients only display it.
type CodeVerdict struct {
	SessionID    int64            `json:"session_id"`
	Status       AttendanceStatus `json:"status"`
	Distance     *float64         `json:"distance,omitempty"`
	WithinRadius bool             `json:"within_radius"`
	Message      string           `json:"message"`
}
