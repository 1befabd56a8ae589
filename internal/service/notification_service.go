package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
	"github.com/Achyut-shekhar/Attendx/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) error
}

type notificationRoster interface {
	Roster(ctx context.Context, classID string) ([]models.Student, error)
}

const notificationJobType = "notification.write"

// NotificationService writes inbox rows on attendance events. Writes go
// through the job queue so request handlers never wait on them.
type NotificationService struct {
	repo   notificationRepository
	roster notificationRoster
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the service and its backing queue. Call
// Start before use and Stop on shutdown.
func NewNotificationService(repo notificationRepository, roster notificationRoster, logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, roster: roster, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handle, cfg)
	return s
}

// Start begins queue consumption.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// SessionStarted fans a high-priority notification out to every enrolled
// student of the class.
func (s *NotificationService) SessionStarted(ctx context.Context, class *models.Class, session *models.Session) {
	students, err := s.roster.Roster(ctx, class.ID)
	if err != nil {
		s.logger.Warn("failed to load roster for notifications", zap.String("class_id", class.ID), zap.Error(err))
		return
	}

	for _, student := range students {
		s.enqueue(&models.Notification{
			UserID:           student.UserID,
			Type:             "session_started",
			Title:            "Attendance open",
			Message:          fmt.Sprintf("%s is taking attendance now", class.Name),
			Priority:         models.PriorityHigh,
			RelatedClassID:   &class.ID,
			RelatedSessionID: &session.ID,
		})
	}
}

// AttendanceMarked records the mark in the student's inbox.
func (s *NotificationService) AttendanceMarked(ctx context.Context, session *models.Session, studentID string, status models.AttendanceStatus) {
	priority := models.PriorityLow
	if status == models.StatusAbsent {
		priority = models.PriorityHigh
	}
	s.enqueue(&models.Notification{
		UserID:           studentID,
		Type:             "attendance_marked",
		Title:            "Attendance recorded",
		Message:          fmt.Sprintf("You were marked %s", status),
		Priority:         priority,
		RelatedClassID:   &session.ClassID,
		RelatedSessionID: &session.ID,
	})
}

// ListByUser returns a user's inbox, newest first.
func (s *NotificationService) ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags one notification read for its owner.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	updated, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead flags the whole inbox read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}

func (s *NotificationService) enqueue(n *models.Notification) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    notificationJobType,
		Payload: n,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("user_id", n.UserID), zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(*models.Notification)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.Create(ctx, n)
}
