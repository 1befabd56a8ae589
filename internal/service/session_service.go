package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id int64) (*models.Session, error)
	FindActiveByClass(ctx context.Context, classID string) (*models.Session, error)
	ListActiveByFaculty(ctx context.Context, facultyID string) ([]models.Session, error)
	ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.Session, error)
	Close(ctx context.Context, id int64, endTime time.Time) (bool, error)
}

type sessionClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
}

type sessionCodeCache interface {
	SetByCode(ctx context.Context, code string, session *models.Session, ttl time.Duration) error
	DeleteByCode(ctx context.Context, code string) error
}

type sessionAttendanceRepository interface {
	MarkAbsentUnmarked(ctx context.Context, sessionID int64, classID string) (int64, error)
}

type sessionNotifier interface {
	SessionStarted(ctx context.Context, class *models.Class, session *models.Session)
}

type sessionMetrics interface {
	SessionOpened()
	SessionClosed()
}

// SessionConfig tunes session creation defaults.
type SessionConfig struct {
	DefaultRadiusMeters float64
	CodeCacheTTL        time.Duration
}

// SessionService manages the lifecycle of attendance sessions.
type SessionService struct {
	sessions   sessionRepository
	classes    sessionClassRepository
	attendance sessionAttendanceRepository
	cache      sessionCodeCache
	notifier   sessionNotifier
	metrics    sessionMetrics
	validator  *validator.Validate
	logger     *zap.Logger
	config     SessionConfig
}

// NewSessionService constructs a SessionService instance. The cache and
// notifier may be nil.
func NewSessionService(
	sessions sessionRepository,
	classes sessionClassRepository,
	attendance sessionAttendanceRepository,
	cache sessionCodeCache,
	notifier sessionNotifier,
	metrics sessionMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	config SessionConfig,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.DefaultRadiusMeters <= 0 {
		config.DefaultRadiusMeters = 50
	}
	if config.CodeCacheTTL <= 0 {
		config.CodeCacheTTL = time.Minute
	}
	return &SessionService{
		sessions:   sessions,
		classes:    classes,
		attendance: attendance,
		cache:      cache,
		notifier:   notifier,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		config:     config,
	}
}

// Start opens a session for a class. If the class already has an ACTIVE
// session it is returned as-is instead of opening a second one.
func (s *SessionService) Start(ctx context.Context, facultyID, classID string, req models.StartSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "latitude and longitude must be provided together")
	}

	class, err := s.requireOwner(ctx, facultyID, classID)
	if err != nil {
		return nil, err
	}

	existing, err := s.sessions.FindActiveByClass(ctx, classID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active session")
	}

	code, err := generateSessionCode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate session code")
	}

	session := &models.Session{
		ClassID:       classID,
		GeneratedCode: &code,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
	}
	if session.HasGeofence() {
		radius := s.config.DefaultRadiusMeters
		if req.RadiusMeters != nil {
			radius = *req.RadiusMeters
		}
		session.RadiusMeters = &radius
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	if s.cache != nil {
		if err := s.cache.SetByCode(ctx, code, session, s.config.CodeCacheTTL); err != nil {
			s.logger.Warn("failed to cache session code", zap.Int64("session_id", session.ID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.SessionStarted(ctx, class, session)
	}
	if s.metrics != nil {
		s.metrics.SessionOpened()
	}

	s.logger.Info("session started",
		zap.Int64("session_id", session.ID),
		zap.String("class_id", classID),
		zap.Bool("geofence", session.HasGeofence()))
	return session, nil
}

// End closes a session and marks every enrolled student without a record
// ABSENT. Closing an already-CLOSED session fails.
func (s *SessionService) End(ctx context.Context, facultyID, classID string, sessionID int64) (int64, error) {
	if _, err := s.requireOwner(ctx, facultyID, classID); err != nil {
		return 0, err
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.ClassID != classID {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "session not found in this class")
	}

	closed, err := s.sessions.Close(ctx, sessionID, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close session")
	}
	if !closed {
		return 0, appErrors.Clone(appErrors.ErrSessionClosed, "session is already closed")
	}

	absent, err := s.attendance.MarkAbsentUnmarked(ctx, sessionID, classID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark absent students")
	}

	if s.cache != nil && session.GeneratedCode != nil {
		if err := s.cache.DeleteByCode(ctx, *session.GeneratedCode); err != nil {
			s.logger.Warn("failed to evict session code", zap.Int64("session_id", sessionID), zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.SessionClosed()
	}

	s.logger.Info("session closed", zap.Int64("session_id", sessionID), zap.Int64("marked_absent", absent))
	return absent, nil
}

// Active returns the class's ACTIVE session for an authorized caller. The
// generated code is only visible to the owning faculty member.
func (s *SessionService) Active(ctx context.Context, userID string, role models.UserRole, classID string) (*models.Session, error) {
	class, err := s.requireAccess(ctx, userID, role, classID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.FindActiveByClass(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active session")
	}

	if class.FacultyID != userID {
		clone := *session
		clone.GeneratedCode = nil
		return &clone, nil
	}
	return session, nil
}

// ListActiveByFaculty returns all ACTIVE sessions across a faculty's classes.
func (s *SessionService) ListActiveByFaculty(ctx context.Context, facultyID string) ([]models.Session, error) {
	sessions, err := s.sessions.ListActiveByFaculty(ctx, facultyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active sessions")
	}
	return sessions, nil
}

// ByClassAndDate returns a class's sessions on the given day for an
// authorized caller.
func (s *SessionService) ByClassAndDate(ctx context.Context, userID string, role models.UserRole, classID string, date time.Time) ([]models.Session, error) {
	if _, err := s.requireAccess(ctx, userID, role, classID); err != nil {
		return nil, err
	}

	sessions, err := s.sessions.ListByClassAndDate(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

func (s *SessionService) requireOwner(ctx context.Context, facultyID, classID string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
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

func (s *SessionService) requireAccess(ctx context.Context, userID string, role models.UserRole, classID string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if role == models.RoleFaculty {
		if class.FacultyID != userID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another faculty member")
		}
		return class, nil
	}

	enrolled, err := s.classes.IsEnrolled(ctx, classID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotEnrolled, "join the class before viewing its sessions")
	}
	return class, nil
}

func generateSessionCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
