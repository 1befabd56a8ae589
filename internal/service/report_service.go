package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
	"github.com/Achyut-shekhar/Attendx/pkg/export"
	"github.com/Achyut-shekhar/Attendx/pkg/storage"
)

type reportAttendanceRepository interface {
	ListBySession(ctx context.Context, sessionID int64) ([]models.AttendanceRecord, error)
}

type reportSessionRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Session, error)
}

type reportClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Roster(ctx context.Context, classID string) ([]models.Student, error)
}

// ReportService renders a session's attendance sheet as a PDF for the
// owning faculty member.
type ReportService struct {
	attendance reportAttendanceRepository
	sessions   reportSessionRepository
	classes    reportClassRepository
	exporter   *export.PDFExporter
	archive    *storage.Archive
	signer     *storage.LinkSigner
	logger     *zap.Logger
}

// NewReportService constructs a ReportService instance. Archive and
// signer may be nil, which disables shareable download links.
func NewReportService(attendance reportAttendanceRepository, sessions reportSessionRepository, classes reportClassRepository, archive *storage.Archive, signer *storage.LinkSigner, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		attendance: attendance,
		sessions:   sessions,
		classes:    classes,
		exporter:   export.NewPDFExporter(),
		archive:    archive,
		signer:     signer,
		logger:     logger,
	}
}

// SessionPDF builds the printable attendance sheet for a session.
func (s *ReportService) SessionPDF(ctx context.Context, facultyID string, sessionID int64) ([]byte, string, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}

	class, err := s.classes.FindByID(ctx, session.ClassID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.FacultyID != facultyID {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "class belongs to another faculty member")
	}

	records, err := s.attendance.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}

	roster, err := s.classes.Roster(ctx, class.ID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roster")
	}
	rollByUser := make(map[string]string, len(roster))
	for _, student := range roster {
		if student.RollNumber != nil {
			rollByUser[student.UserID] = *student.RollNumber
		}
	}

	report := export.SessionReport{
		ClassName: class.Name,
		StartTime: session.StartTime.Format("2006-01-02 15:04"),
	}
	if session.GeneratedCode != nil {
		report.Code = *session.GeneratedCode
	}
	for _, record := range records {
		row := export.SessionReportRow{
			Name:   record.StudentName,
			Status: string(record.Status),
		}
		if record.StudentID != nil {
			row.RollNumber = rollByUser[*record.StudentID]
		}
		if record.MarkedAt != nil {
			row.MarkedAt = record.MarkedAt.Format("15:04:05")
		}
		report.Rows = append(report.Rows, row)
	}

	payload, err := s.exporter.Render(report)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	filename := fmt.Sprintf("attendance-session-%d.pdf", session.ID)
	s.logger.Info("session report rendered", zap.Int64("session_id", session.ID), zap.Int("rows", len(report.Rows)))
	return payload, filename, nil
}

// SessionPDFLink renders the report, archives it on disk, and returns a
// signed token so the file can be downloaded without a bearer token.
func (s *ReportService) SessionPDFLink(ctx context.Context, facultyID string, sessionID int64) (string, time.Time, error) {
	if s.archive == nil || s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "report links are disabled")
	}

	payload, filename, err := s.SessionPDF(ctx, facultyID, sessionID)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.archive.Save(filename, payload); err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive report")
	}

	token, expiresAt, err := s.signer.Generate(filename)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign report link")
	}
	return token, expiresAt, nil
}

// Download resolves a signed token back to the archived PDF.
func (s *ReportService) Download(token string) ([]byte, string, error) {
	if s.archive == nil || s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report links are disabled")
	}

	filename, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "download link is invalid or expired")
	}
	payload, err := s.archive.Read(filename)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report is no longer available")
	}
	return payload, filename, nil
}
