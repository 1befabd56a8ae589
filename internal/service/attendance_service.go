package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Achyut-shekhar/Attendx/internal/geo"
	"github.com/Achyut-shekhar/Attendx/internal/models"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, sessionID int64, studentID string, status models.AttendanceStatus) (*models.AttendanceRecord, error)
	ListBySession(ctx context.Context, sessionID int64) ([]models.AttendanceRecord, error)
	StudentHistory(ctx context.Context, classID, studentID string) ([]models.AttendanceRecord, error)
	StudentSummary(ctx context.Context, studentID string) (*models.AttendanceSummary, error)
}

type attendanceSessionRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Session, error)
	FindActiveByCode(ctx context.Context, code string) (*models.Session, error)
}

type attendanceClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
}

type attendanceCodeCache interface {
	GetByCode(ctx context.Context, code string) (*models.Session, error)
	SetByCode(ctx context.Context, code string, session *models.Session, ttl time.Duration) error
}

type attendanceNotifier interface {
	AttendanceMarked(ctx context.Context, session *models.Session, studentID string, status models.AttendanceStatus)
}

type attendanceMetrics interface {
	RecordMark(status models.AttendanceStatus)
	RecordCodeSubmission(withinRadius bool)
	RecordCacheOperation(hit bool, duration time.Duration)
}

// GeofenceConfig tunes the server-side radius decision on code submissions.
type GeofenceConfig struct {
	DefaultRadiusMeters float64
	MaxAccuracyBuffer   float64
	CodeCacheTTL        time.Duration
}

// AttendanceService owns the authoritative attendance marks: faculty manual
// marking, student code submission with the geofence verdict, snapshots and
// per-student summaries.
type AttendanceService struct {
	attendance attendanceRepository
	sessions   attendanceSessionRepository
	classes    attendanceClassRepository
	cache      attendanceCodeCache
	notifier   attendanceNotifier
	metrics    attendanceMetrics
	validator  *validator.Validate
	logger     *zap.Logger
	config     GeofenceConfig
}

// NewAttendanceService constructs an AttendanceService instance. The cache,
// notifier and metrics may be nil.
func NewAttendanceService(
	attendance attendanceRepository,
	sessions attendanceSessionRepository,
	classes attendanceClassRepository,
	cache attendanceCodeCache,
	notifier attendanceNotifier,
	metrics attendanceMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	config GeofenceConfig,
) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.DefaultRadiusMeters <= 0 {
		config.DefaultRadiusMeters = 50
	}
	if config.MaxAccuracyBuffer <= 0 {
		config.MaxAccuracyBuffer = 100
	}
	if config.CodeCacheTTL <= 0 {
		config.CodeCacheTTL = time.Minute
	}
	return &AttendanceService{
		attendance: attendance,
		sessions:   sessions,
		classes:    classes,
		cache:      cache,
		notifier:   notifier,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		config:     config,
	}
}

// Mark writes a student's status in a session on behalf of the owning
// faculty member. Re-marking replaces the previous status.
func (s *AttendanceService) Mark(ctx context.Context, facultyID string, sessionID int64, studentID string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance status %q", status))
	}

	session, class, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if class.FacultyID != facultyID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another faculty member")
	}
	if session.Status != models.SessionActive {
		return nil, appErrors.Clone(appErrors.ErrSessionClosed, "session is closed")
	}

	enrolled, err := s.classes.IsEnrolled(ctx, class.ID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotEnrolled, "student is not enrolled in this class")
	}

	record, err := s.attendance.Upsert(ctx, sessionID, studentID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write attendance")
	}

	if s.metrics != nil {
		s.metrics.RecordMark(status)
	}
	if s.notifier != nil {
		s.notifier.AttendanceMarked(ctx, session, studentID, status)
	}
	return record, nil
}

// SubmitCode marks the calling student by attendance code. When the session
// carries a geofence the verdict depends on the reported position: outside
// the effective radius the student is written ABSENT, not rejected.
func (s *AttendanceService) SubmitCode(ctx context.Context, studentID string, req models.CodeSubmission) (*models.CodeVerdict, error) {
	req.StudentID = studentID
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	session, err := s.resolveCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.classes.IsEnrolled(ctx, session.ClassID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotEnrolled, "join the class before submitting its code")
	}

	verdict := &models.CodeVerdict{
		SessionID:    session.ID,
		Status:       models.StatusPresent,
		WithinRadius: true,
		Message:      "attendance marked present",
	}

	if session.HasGeofence() {
		if req.Latitude == nil || req.Longitude == nil {
			return nil, appErrors.Clone(appErrors.ErrLocationRequired, "this session requires your location")
		}

		distance := geo.DistanceMeters(
			geo.Point{Latitude: *session.Latitude, Longitude: *session.Longitude},
			geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude},
		)

		radius := s.config.DefaultRadiusMeters
		if session.RadiusMeters != nil {
			radius = *session.RadiusMeters
		}
		var accuracy float64
		if req.Accuracy != nil {
			accuracy = math.Min(*req.Accuracy, s.config.MaxAccuracyBuffer)
		}
		effective := radius + accuracy

		verdict.Distance = &distance
		if distance > effective {
			verdict.Status = models.StatusAbsent
			verdict.WithinRadius = false
			verdict.Message = fmt.Sprintf("you are %.0f m from class, outside the %.0f m radius", distance, effective)
		}
	}

	if _, err := s.attendance.Upsert(ctx, session.ID, studentID, verdict.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write attendance")
	}

	if s.metrics != nil {
		s.metrics.RecordMark(verdict.Status)
		s.metrics.RecordCodeSubmission(verdict.WithinRadius)
	}
	if s.notifier != nil {
		s.notifier.AttendanceMarked(ctx, session, studentID, verdict.Status)
	}

	s.logger.Info("code submitted",
		zap.Int64("session_id", session.ID),
		zap.String("student_id", studentID),
		zap.String("status", string(verdict.Status)),
		zap.Bool("within_radius", verdict.WithinRadius))
	return verdict, nil
}

// Snapshot returns a session's attendance records for an authorized caller.
func (s *AttendanceService) Snapshot(ctx context.Context, userID string, role models.UserRole, sessionID int64) ([]models.AttendanceRecord, error) {
	_, class, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if role == models.RoleFaculty {
		if class.FacultyID != userID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another faculty member")
		}
	} else {
		enrolled, err := s.classes.IsEnrolled(ctx, class.ID, userID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		if !enrolled {
			return nil, appErrors.Clone(appErrors.ErrNotEnrolled, "join the class before viewing attendance")
		}
	}

	records, err := s.attendance.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// History returns a student's per-session marks within a class.
func (s *AttendanceService) History(ctx context.Context, studentID, classID string) ([]models.AttendanceRecord, error) {
	enrolled, err := s.classes.IsEnrolled(ctx, classID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotEnrolled, "join the class before viewing history")
	}

	records, err := s.attendance.StudentHistory(ctx, classID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	return records, nil
}

// Summary returns a student's counts across all their sessions.
func (s *AttendanceService) Summary(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	summary, err := s.attendance.StudentSummary(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load summary")
	}
	return summary, nil
}

func (s *AttendanceService) loadSession(ctx context.Context, sessionID int64) (*models.Session, *models.Class, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	class, err := s.classes.FindByID(ctx, session.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return session, class, nil
}

// resolveCode finds the ACTIVE session behind an attendance code. Cache
// first; on a miss the database answer is cached for the next submission.
func (s *AttendanceService) resolveCode(ctx context.Context, code string) (*models.Session, error) {
	if s.cache != nil {
		start := time.Now()
		cached, err := s.cache.GetByCode(ctx, code)
		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true, time.Since(start))
			}
			if cached.Status == models.SessionActive {
				return cached, nil
			}
			return nil, appErrors.Clone(appErrors.ErrInvalidCode, "this code's session has ended")
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false, time.Since(start))
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("session code cache lookup failed", zap.Error(err))
		}
	}

	session, err := s.sessions.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCode, "invalid or expired code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up code")
	}

	if s.cache != nil {
		if err := s.cache.SetByCode(ctx, code, session, s.config.CodeCacheTTL); err != nil {
			s.logger.Warn("failed to cache session code", zap.Error(err))
		}
	}
	return session, nil
}
