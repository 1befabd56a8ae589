package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Achyut-shekhar/Attendx/internal/models"
)

// ClassRepository handles persistence for classes and enrollments.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Create inserts a class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	class.CreatedAt = time.Now().UTC()
	query := `INSERT INTO classes (id, name, faculty_id, join_code, created_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, class.ID, class.Name, class.FacultyID, class.JoinCode, class.CreatedAt); err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	return nil
}

// FindByID returns a class by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	var class models.Class
	query := `SELECT id, name, faculty_id, join_code, created_at FROM classes WHERE id = $1`
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByJoinCode returns a class by its join code.
func (r *ClassRepository) FindByJoinCode(ctx context.Context, joinCode string) (*models.Class, error) {
	var class models.Class
	query := `SELECT id, name, faculty_id, join_code, created_at FROM classes WHERE join_code = $1`
	if err := r.db.GetContext(ctx, &class, query, joinCode); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListByFaculty returns the classes owned by a faculty member.
func (r *ClassRepository) ListByFaculty(ctx context.Context, facultyID string) ([]models.Class, error) {
	var classes []models.Class
	query := `SELECT id, name, faculty_id, join_code, created_at FROM classes
WHERE faculty_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &classes, query, facultyID); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// ListEnrolled returns the classes a student is enrolled in.
func (r *ClassRepository) ListEnrolled(ctx context.Context, studentID string) ([]models.EnrolledClass, error) {
	var classes []models.EnrolledClass
	query := `SELECT c.id, c.name, c.faculty_id, c.join_code, c.created_at, u.name AS faculty_name
FROM classes c
JOIN enrollments e ON e.class_id = c.id
JOIN users u ON u.id = c.faculty_id
WHERE e.student_id = $1
ORDER BY c.created_at DESC`
	if err := r.db.SelectContext(ctx, &classes, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrolled classes: %w", err)
	}
	return classes, nil
}

// Delete removes a class. Returns true when a row was deleted.
func (r *ClassRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete class: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete class rows: %w", err)
	}
	return affected > 0, nil
}

// Enroll adds a student to a class, ignoring duplicate joins.
func (r *ClassRepository) Enroll(ctx context.Context, classID, studentID string) error {
	query := `INSERT INTO enrollments (class_id, student_id, joined_at)
VALUES ($1, $2, $3)
ON CONFLICT (class_id, student_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, classID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("enroll student: %w", err)
	}
	return nil
}

// IsEnrolled reports whether a student belongs to a class.
func (r *ClassRepository) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND student_id = $2`
	if err := r.db.GetContext(ctx, &count, query, classID, studentID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return count > 0, nil
}

// Roster lists the students enrolled in a class.
func (r *ClassRepository) Roster(ctx context.Context, classID string) ([]models.Student, error) {
	var students []models.Student
	query := `SELECT u.id AS user_id, u.name, u.email, u.roll_number, u.section
FROM enrollments e
JOIN users u ON u.id = e.student_id
WHERE e.class_id = $1
ORDER BY u.roll_number NULLS LAST, u.name`
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return students, nil
}
