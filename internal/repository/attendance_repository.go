package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Achyut-shekhar/Attendx/internal/models"
)

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert writes a student's status for a session. At most one authoritative
// row exists per (session, student); a repeat write replaces the status and
// refreshes marked_at.
func (r *AttendanceRepository) Upsert(ctx context.Context, sessionID int64, studentID string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	query := `INSERT INTO attendance_records (session_id, student_id, status, marked_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (session_id, student_id)
DO UPDATE SET status = EXCLUDED.status, marked_at = EXCLUDED.marked_at
RETURNING session_id, student_id, status, marked_at`
	var stored struct {
		SessionID int64                   `db:"session_id"`
		StudentID string                  `db:"student_id"`
		Status    models.AttendanceStatus `db:"status"`
		MarkedAt  *time.Time              `db:"marked_at"`
	}
	if err := r.db.GetContext(ctx, &stored, query, sessionID, studentID, status, now); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	var name string
	if err := r.db.GetContext(ctx, &name, `SELECT name FROM users WHERE id = $1`, studentID); err != nil {
		return nil, fmt.Errorf("resolve student name: %w", err)
	}
	return &models.AttendanceRecord{
		SessionID:   stored.SessionID,
		StudentID:   &stored.StudentID,
		StudentName: name,
		Status:      stored.Status,
		MarkedAt:    stored.MarkedAt,
	}, nil
}

// ListBySession returns the attendance snapshot for a session.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID int64) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	query := `SELECT ar.session_id, ar.student_id, COALESCE(u.name, '') AS student_name, ar.status, ar.marked_at
FROM attendance_records ar
LEFT JOIN users u ON u.id = ar.student_id
WHERE ar.session_id = $1
ORDER BY student_name`
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// MarkAbsentUnmarked writes ABSENT for every enrolled student without a
// record in the session. Runs when a session closes.
func (r *AttendanceRepository) MarkAbsentUnmarked(ctx context.Context, sessionID int64, classID string) (int64, error) {
	query := `INSERT INTO attendance_records (session_id, student_id, status, marked_at)
SELECT $1, e.student_id, $2, $3
FROM enrollments e
WHERE e.class_id = $4
  AND NOT EXISTS (
    SELECT 1 FROM attendance_records ar
    WHERE ar.session_id = $1 AND ar.student_id = e.student_id
  )`
	res, err := r.db.ExecContext(ctx, query, sessionID, models.StatusAbsent, time.Now().UTC(), classID)
	if err != nil {
		return 0, fmt.Errorf("mark unmarked absent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark unmarked absent rows: %w", err)
	}
	return affected, nil
}

// StudentHistory returns a student's per-session marks within one class.
func (r *AttendanceRepository) StudentHistory(ctx context.Context, classID, studentID string) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	query := `SELECT ar.session_id, ar.student_id, COALESCE(u.name, '') AS student_name, ar.status, ar.marked_at
FROM attendance_records ar
JOIN attendance_sessions s ON s.id = ar.session_id
LEFT JOIN users u ON u.id = ar.student_id
WHERE s.class_id = $1 AND ar.student_id = $2
ORDER BY s.start_time DESC`
	if err := r.db.SelectContext(ctx, &records, query, classID, studentID); err != nil {
		return nil, fmt.Errorf("student history: %w", err)
	}
	return records, nil
}

// StudentSummary counts a student's marks across all their sessions. LATE
// counts toward the attendance percentage.
func (r *AttendanceRepository) StudentSummary(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	var row struct {
		Present int `db:"present"`
		Late    int `db:"late"`
		Absent  int `db:"absent"`
	}
	query := `SELECT
  COUNT(*) FILTER (WHERE status = 'PRESENT') AS present,
  COUNT(*) FILTER (WHERE status = 'LATE') AS late,
  COUNT(*) FILTER (WHERE status = 'ABSENT') AS absent
FROM attendance_records WHERE student_id = $1`
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		return nil, fmt.Errorf("student summary: %w", err)
	}
	summary := &models.AttendanceSummary{
		Present: row.Present,
		Late:    row.Late,
		Absent:  row.Absent,
		Total:   row.Present + row.Late + row.Absent,
	}
	if summary.Total > 0 {
		summary.Percent = float64(summary.Present+summary.Late) / float64(summary.Total) * 100
	}
	return summary, nil
}
