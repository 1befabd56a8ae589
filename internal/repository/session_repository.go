package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Achyut-shekhar/Attendx/internal/models"
)

// SessionRepository handles persistence for attendance sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, class_id, status, generated_code, start_time, end_time, latitude, longitude, radius_meters`

// Create inserts an ACTIVE session and fills in its generated id.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.StartTime.IsZero() {
		session.StartTime = time.Now().UTC()
	}
	session.Status = models.SessionActive
	query := `INSERT INTO attendance_sessions (class_id, status, generated_code, start_time, latitude, longitude, radius_meters)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`
	if err := r.db.GetContext(ctx, &session.ID, query,
		session.ClassID, session.Status, session.GeneratedCode, session.StartTime,
		session.Latitude, session.Longitude, session.RadiusMeters); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindByID returns a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id int64) (*models.Session, error) {
	var session models.Session
	query := fmt.Sprintf(`SELECT %s FROM attendance_sessions WHERE id = $1`, sessionColumns)
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindActiveByClass returns the class's ACTIVE session, if any.
func (r *SessionRepository) FindActiveByClass(ctx context.Context, classID string) (*models.Session, error) {
	var session models.Session
	query := fmt.Sprintf(`SELECT %s FROM attendance_sessions
WHERE class_id = $1 AND status = $2
ORDER BY start_time DESC LIMIT 1`, sessionColumns)
	if err := r.db.GetContext(ctx, &session, query, classID, models.SessionActive); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindActiveByCode returns the ACTIVE session carrying the generated code.
func (r *SessionRepository) FindActiveByCode(ctx context.Context, code string) (*models.Session, error) {
	var session models.Session
	query := fmt.Sprintf(`SELECT %s FROM attendance_sessions
WHERE generated_code = $1 AND status = $2
LIMIT 1`, sessionColumns)
	if err := r.db.GetContext(ctx, &session, query, code, models.SessionActive); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListActiveByFaculty returns all ACTIVE sessions across a faculty's classes.
func (r *SessionRepository) ListActiveByFaculty(ctx context.Context, facultyID string) ([]models.Session, error) {
	var sessions []models.Session
	query := `SELECT s.id, s.class_id, s.status, s.generated_code, s.start_time, s.end_time, s.latitude, s.longitude, s.radius_meters
FROM attendance_sessions s
JOIN classes c ON c.id = s.class_id
WHERE c.faculty_id = $1 AND s.status = $2
ORDER BY s.start_time DESC`
	if err := r.db.SelectContext(ctx, &sessions, query, facultyID, models.SessionActive); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// ListByClassAndDate returns a class's sessions started on the given day.
func (r *SessionRepository) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.Session, error) {
	var sessions []models.Session
	query := fmt.Sprintf(`SELECT %s FROM attendance_sessions
WHERE class_id = $1 AND start_time >= $2 AND start_time < $3
ORDER BY start_time DESC`, sessionColumns)
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	if err := r.db.SelectContext(ctx, &sessions, query, classID, dayStart, dayStart.AddDate(0, 0, 1)); err != nil {
		return nil, fmt.Errorf("list sessions by date: %w", err)
	}
	return sessions, nil
}

// Close marks a session CLOSED. Returns false when no ACTIVE row matched,
// which keeps closing an already-CLOSED session from looking like success.
func (r *SessionRepository) Close(ctx context.Context, id int64, endTime time.Time) (bool, error) {
	query := `UPDATE attendance_sessions SET status = $1, end_time = $2
WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, models.SessionClosed, endTime, id, models.SessionActive)
	if err != nil {
		return false, fmt.Errorf("close session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close session rows: %w", err)
	}
	return affected > 0, nil
}
