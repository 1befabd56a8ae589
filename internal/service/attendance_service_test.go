package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
)

type mockAttendanceRepo struct {
	records map[string]models.AttendanceRecord
	history []models.AttendanceRecord
	summary models.AttendanceSummary
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, sessionID int64, studentID string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	if m.records == nil {
		m.records = make(map[string]models.AttendanceRecord)
	}
	now := time.Now().UTC()
	key := fmt.Sprintf("%d:%s", sessionID, studentID)
	record := models.AttendanceRecord{
		SessionID: sessionID,
		StudentID: &studentID,
		Status:    status,
		MarkedAt:  &now,
	}
	m.records[key] = record
	return &record, nil
}

func (m *mockAttendanceRepo) ListBySession(ctx context.Context, sessionID int64) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, r := range m.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockAttendanceRepo) StudentHistory(ctx context.Context, classID, studentID string) ([]models.AttendanceRecord, error) {
	return m.history, nil
}

func (m *mockAttendanceRepo) StudentSummary(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	summary := m.summary
	return &summary, nil
}

func (m *mockAttendanceRepo) statusOf(sessionID int64, studentID string) models.AttendanceStatus {
	return m.records[fmt.Sprintf("%d:%s", sessionID, studentID)].Status
}

type mockAttendanceNotifier struct {
	marked []string
}

func (m *mockAttendanceNotifier) AttendanceMarked(ctx context.Context, session *models.Session, studentID string, status models.AttendanceStatus) {
	m.marked = append(m.marked, fmt.Sprintf("%s:%s", studentID, status))
}

type attendanceFixture struct {
	svc      *AttendanceService
	records  *mockAttendanceRepo
	sessions *mockSessionRepo
	classes  *mockClassRepo
	cache    *mockCodeCache
	notifier *mockAttendanceNotifier
}

func newAttendanceFixture() *attendanceFixture {
	code := "483920"
	lat, lng, radius := 12.9716, 77.5946, 50.0
	f := &attendanceFixture{
		records: &mockAttendanceRepo{},
		sessions: &mockSessionRepo{sessions: map[int64]models.Session{
			1: {ID: 1, ClassID: "class-1", Status: models.SessionActive, GeneratedCode: &code,
				Latitude: &lat, Longitude: &lng, RadiusMeters: &radius},
			2: {ID: 2, ClassID: "class-1", Status: models.SessionClosed},
		}},
		classes: &mockClassRepo{
			classes:  map[string]models.Class{"class-1": {ID: "class-1", FacultyID: "fac-1"}},
			enrolled: map[string][]string{"class-1": {"stu-1", "stu-2"}},
		},
		cache:    &mockCodeCache{},
		notifier: &mockAttendanceNotifier{},
	}
	f.svc = NewAttendanceService(f.records, f.sessions, f.classes, f.cache, f.notifier, nil,
		validator.New(), zap.NewNop(), GeofenceConfig{DefaultRadiusMeters: 50, MaxAccuracyBuffer: 100, CodeCacheTTL: time.Minute})
	return f
}

func TestAttendanceServiceMark(t *testing.T) {
	f := newAttendanceFixture()

	record, err := f.svc.Mark(context.Background(), "fac-1", 1, "stu-1", models.StatusPresent)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPresent, record.Status)
	assert.Equal(t, []string{"stu-1:PRESENT"}, f.notifier.marked)

	// re-marking replaces the status
	record, err = f.svc.Mark(context.Background(), "fac-1", 1, "stu-1", models.StatusAbsent)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAbsent, record.Status)
	assert.Equal(t, models.StatusAbsent, f.records.statusOf(1, "stu-1"))
}

func TestAttendanceServiceMarkClosedSession(t *testing.T) {
	f := newAttendanceFixture()

	_, err := f.svc.Mark(context.Background(), "fac-1", 2, "stu-1", models.StatusPresent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionClosed.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkRequiresOwner(t *testing.T) {
	f := newAttendanceFixture()

	_, err := f.svc.Mark(context.Background(), "fac-2", 1, "stu-1", models.StatusPresent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkUnenrolledStudent(t *testing.T) {
	f := newAttendanceFixture()

	_, err := f.svc.Mark(context.Background(), "fac-1", 1, "stu-9", models.StatusPresent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSubmitCodeWithinRadius(t *testing.T) {
	f := newAttendanceFixture()

	lat, lng, acc := 12.9716, 77.5946, 10.0
	verdict, err := f.svc.SubmitCode(context.Background(), "stu-1", models.CodeSubmission{
		Code: "483920", Latitude: &lat, Longitude: &lng, Accuracy: &acc,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPresent, verdict.Status)
	assert.True(t, verdict.WithinRadius)
	require.NotNil(t, verdict.Distance)
	assert.InDelta(t, 0, *verdict.Distance, 0.5)
	assert.Equal(t, models.StatusPresent, f.records.statusOf(1, "stu-1"))
}

func TestAttendanceServiceSubmitCodeOutsideRadiusMarksAbsent(t *testing.T) {
	f := newAttendanceFixture()

	// roughly 1.1 km north of the session center
	lat, lng, acc := 12.9816, 77.5946, 10.0
	verdict, err := f.svc.SubmitCode(context.Background(), "stu-1", models.CodeSubmission{
		Code: "483920", Latitude: &lat, Longitude: &lng, Accuracy: &acc,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAbsent, verdict.Status)
	assert.False(t, verdict.WithinRadius)
	require.NotNil(t, verdict.Distance)
	assert.Greater(t, *verdict.Distance, 1000.0)
	assert.Equal(t, models.StatusAbsent, f.records.statusOf(1, "stu-1"))
}

func TestAttendanceServiceSubmitCodeCapsAccuracyBuffer(t *testing.T) {
	f := newAttendanceFixture()

	// roughly 220 m away with a wildly inaccurate fix: the buffer is capped
	// at 100 m, so 220 > 50+100 stays ABSENT
	lat, lng, acc := 12.9736, 77.5946, 500.0
	verdict, err := f.svc.SubmitCode(context.Background(), "stu-1", models.CodeSubmission{
		Code: "483920", Latitude: &lat, Longitude: &lng, Accuracy: &acc,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAbsent, verdict.Status)
}

func TestAttendanceServiceSubmitCodeLocationRequired(t *testing.T) {
	f := newAttendanceFixture()

	_, err := f.svc.SubmitCode(context.Background(), "stu-1", models.CodeSubmission{Code: "483920"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrLocationRequired.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSubmitCodeNoGeofence(t *testing.T) {
	f := newAttendanceFixture()
	code := "765432"
	f.sessions.sessions[3] = models.Session{ID: 3, ClassID: "class-1", Status: models.SessionActive, GeneratedCode: &code}

	verdict, err := f.svc.SubmitCode(context.Background(), "stu-1", models.CodeSubmission{Code: "765432"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPresent, verdict.Status)
	assert.Nil(t, verdict.Distance)
}

func TestAttendanceServiceSubmitCodeInvalid(t *testing.T) {
	f := newAttendanceFixture()

	_, err := f.svc.SubmitCode(context.Background(), "stu-1", models.CodeSubmission{Code: "000000"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCode.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSubmitCodeNotEnrolled(t *testing.T) {
	f := newAttendanceFixture()

	lat, lng := 12.9716, 77.5946
	_, err := f.svc.SubmitCode(context.Background(), "stu-9", models.CodeSubmission{
		Code: "483920", Latitude: &lat, Longitude: &lng,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSubmitCodeUsesCache(t *testing.T) {
	f := newAttendanceFixture()

	lat, lng := 12.9716, 77.5946
	_, err := f.svc.SubmitCode(context.Background(), "stu-1", models.CodeSubmission{
		Code: "483920", Latitude: &lat, Longitude: &lng,
	})
	require.NoError(t, err)

	// the db answer was cached; drop the backing row and submit again
	delete(f.sessions.sessions, 1)
	verdict, err := f.svc.SubmitCode(context.Background(), "stu-2", models.CodeSubmission{
		Code: "483920", Latitude: &lat, Longitude: &lng,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPresent, verdict.Status)
}

func TestAttendanceServiceSubmitCodeCachedClosedSession(t *testing.T) {
	f := newAttendanceFixture()
	closed := models.Session{ID: 2, ClassID: "class-1", Status: models.SessionClosed}
	f.cache.byCode = map[string]models.Session{"483920": closed}

	lat, lng := 12.9716, 77.5946
	_, err := f.svc.SubmitCode(context.Background(), "stu-1", models.CodeSubmission{
		Code: "483920", Latitude: &lat, Longitude: &lng,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCode.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSnapshotAccess(t *testing.T) {
	f := newAttendanceFixture()
	_, err := f.svc.Mark(context.Background(), "fac-1", 1, "stu-1", models.StatusPresent)
	require.NoError(t, err)

	records, err := f.svc.Snapshot(context.Background(), "fac-1", models.RoleFaculty, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	records, err = f.svc.Snapshot(context.Background(), "stu-2", models.RoleStudent, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = f.svc.Snapshot(context.Background(), "stu-9", models.RoleStudent, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceHistoryRequiresEnrollment(t *testing.T) {
	f := newAttendanceFixture()
	f.records.history = []models.AttendanceRecord{{SessionID: 1, Status: models.StatusPresent}}

	records, err := f.svc.History(context.Background(), "stu-1", "class-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = f.svc.History(context.Background(), "stu-9", "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSummary(t *testing.T) {
	f := newAttendanceFixture()
	f.records.summary = models.AttendanceSummary{Present: 8, Late: 1, Absent: 1, Total: 10, Percent: 90}

	summary, err := f.svc.Summary(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 90.0, summary.Percent)
}
