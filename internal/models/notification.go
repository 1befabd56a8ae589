package models

import "time"

// NotificationPriority orders notifications in the inbox.
type NotificationPriority string

const (
	PriorityLow  NotificationPriority = "low"
	PriorityHigh NotificationPriority = "high"
)

// Notification is an in-app record written on attendance events. Delivery
// channels (push, email) are out of scope; only the inbox rows exist.
type Notification struct {
	ID               string               `db:"id" json:"id"`
	UserID           string               `db:"user_id" json:"user_id"`
	Type             string               `db:"type" json:"type"`
	Title            string               `db:"title" json:"title"`
	Message          string               `db:"message" json:"message"`
	Priority         NotificationPriority `db:"priority" json:"priority"`
	RelatedClassID   *string              `db:"related_class_id" json:"related_class_id,omitempty"`
	RelatedSessionID *int64               `db:"related_session_id" json:"related_session_id,omitempty"`
	Read             bool                 `db:"read" json:"read"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
}
