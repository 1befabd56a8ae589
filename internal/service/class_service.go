package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
)

type classRepository interface {
	Create(ctx context.Context, class *models.Class) error
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindByJoinCode(ctx context.Context, joinCode string) (*models.Class, error)
	ListByFaculty(ctx context.Context, facultyID string) ([]models.Class, error)
	ListEnrolled(ctx context.Context, studentID string) ([]models.EnrolledClass, error)
	Delete(ctx context.Context, id string) (bool, error)
	Enroll(ctx context.Context, classID, studentID string) error
	IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
	Roster(ctx context.Context, classID string) ([]models.Student, error)
}

// Join codes avoid 0/O and 1/I so they survive being read aloud.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const joinCodeLength = 6

// ClassService manages classes, join codes and enrollment.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService instance.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// Create makes a new class with a fresh join code.
func (s *ClassService) Create(ctx context.Context, facultyID string, req models.CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	code, err := generateJoinCode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate join code")
	}

	class := &models.Class{Name: req.ClassName, FacultyID: facultyID, JoinCode: code}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("faculty_id", facultyID))
	return class, nil
}

// ListByFaculty returns the classes a faculty member owns.
func (s *ClassService) ListByFaculty(ctx context.Context, facultyID string) ([]models.Class, error) {
	classes, err := s.repo.ListByFaculty(ctx, facultyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// ListEnrolled returns the classes a student has joined.
func (s *ClassService) ListEnrolled(ctx context.Context, studentID string) ([]models.EnrolledClass, error) {
	classes, err := s.repo.ListEnrolled(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled classes")
	}
	return classes, nil
}

// Join enrolls a student into the class behind a join code. Joining twice is
// a no-op, not an error.
func (s *ClassService) Join(ctx context.Context, studentID string, req models.JoinClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid join payload")
	}

	class, err := s.repo.FindByJoinCode(ctx, req.JoinCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no class with that join code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up join code")
	}

	if err := s.repo.Enroll(ctx, class.ID, studentID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}

	s.logger.Info("student joined class", zap.String("class_id", class.ID), zap.String("student_id", studentID))
	return class, nil
}

// Delete removes a class owned by the calling faculty member.
func (s *ClassService) Delete(ctx context.Context, facultyID, classID string) error {
	if _, err := s.requireOwner(ctx, facultyID, classID); err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	return nil
}

// Roster lists the enrolled students of a class the faculty member owns.
func (s *ClassService) Roster(ctx context.Context, facultyID, classID string) ([]models.Student, error) {
	if _, err := s.requireOwner(ctx, facultyID, classID); err != nil {
		return nil, err
	}

	students, err := s.repo.Roster(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roster")
	}
	return students, nil
}

func (s *ClassService) requireOwner(ctx context.Context, facultyID, classID string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.FacultyID != facultyID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another faculty member")
	}
	return class, nil
}

func generateJoinCode() (string, error) {
	buf := make([]byte, joinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(buf), nil
}
