package models

import "time"

// SessionStatus is the lifecycle state of an attendance session.
type SessionStatus string

const (
	SessionActive SessionStatus = "ACTIVE"
	SessionClosed SessionStatus = "CLOSED"
)

// Session is a time-boxed attendance window for one class meeting. A session
// with coordinates carries a circular geofence; one without accepts any
// location. CLOSED sessions are immutable.
type Session struct {
	ID            int64         `db:"id" json:"session_id"`
	ClassID       string        `db:"class_id" json:"class_id"`
	Status        SessionStatus `db:"status" json:"status"`
	GeneratedCode *string       `db:"generated_code" json:"generated_code,omitempty"`
	StartTime     time.Time     `db:"start_time" json:"start_time"`
	EndTime       *time.Time    `db:"end_time" json:"end_time,omitempty"`
	Latitude      *float64      `db:"latitude" json:"latitude,omitempty"`
	Longitude     *float64      `db:"longitude" json:"longitude,omitempty"`
	RadiusMeters  *float64      `db:"radius_meters" json:"radius_meters,omitempty"`
}

// HasGeofence reports whether the session enforces a location check.
func (s *Session) HasGeofence() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// StartSessionRequest opens a session for a class. Coordinates are optional;
// when present the session enforces a geofence around them.
type StartSessionRequest struct {
	Latitude     *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,longitude"`
	RadiusMeters *float64 `json:"radius_meters" validate:"omitempty,gt=0"`
}
