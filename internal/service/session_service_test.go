package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
)

type mockSessionRepo struct {
	sessions map[int64]models.Session
	nextID   int64
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if m.sessions == nil {
		m.sessions = make(map[int64]models.Session)
	}
	m.nextID++
	session.ID = m.nextID
	session.Status = models.SessionActive
	m.sessions[session.ID] = *session
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id int64) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		session := s
		return &session, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) FindActiveByClass(ctx context.Context, classID string) (*models.Session, error) {
	for _, s := range m.sessions {
		if s.ClassID == classID && s.Status == models.SessionActive {
			session := s
			return &session, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) FindActiveByCode(ctx context.Context, code string) (*models.Session, error) {
	for _, s := range m.sessions {
		if s.GeneratedCode != nil && *s.GeneratedCode == code && s.Status == models.SessionActive {
			session := s
			return &session, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) ListActiveByFaculty(ctx context.Context, facultyID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range m.sessions {
		if s.Status == models.SessionActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.Session, error) {
	var out []models.Session
	for _, s := range m.sessions {
		if s.ClassID == classID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) Close(ctx context.Context, id int64, endTime time.Time) (bool, error) {
	s, ok := m.sessions[id]
	if !ok || s.Status != models.SessionActive {
		return false, nil
	}
	s.Status = models.SessionClosed
	s.EndTime = &endTime
	m.sessions[id] = s
	return true, nil
}

type mockAbsentMarker struct {
	calls []int64
	count int64
}

func (m *mockAbsentMarker) MarkAbsentUnmarked(ctx context.Context, sessionID int64, classID string) (int64, error) {
	m.calls = append(m.calls, sessionID)
	return m.count, nil
}

type mockCodeCache struct {
	byCode  map[string]models.Session
	deleted []string
}

func (m *mockCodeCache) GetByCode(ctx context.Context, code string) (*models.Session, error) {
	if s, ok := m.byCode[code]; ok {
		session := s
		return &session, nil
	}
	return nil, appErrors.ErrCacheMiss
}

func (m *mockCodeCache) SetByCode(ctx context.Context, code string, session *models.Session, ttl time.Duration) error {
	if m.byCode == nil {
		m.byCode = make(map[string]models.Session)
	}
	m.byCode[code] = *session
	return nil
}

func (m *mockCodeCache) DeleteByCode(ctx context.Context, code string) error {
	delete(m.byCode, code)
	m.deleted = append(m.deleted, code)
	return nil
}

type mockSessionNotifier struct {
	started []int64
}

func (m *mockSessionNotifier) SessionStarted(ctx context.Context, class *models.Class, session *models.Session) {
	m.started = append(m.started, session.ID)
}

func newSessionService(sessions *mockSessionRepo, classes *mockClassRepo, absent *mockAbsentMarker, cache *mockCodeCache, notifier *mockSessionNotifier) *SessionService {
	return NewSessionService(sessions, classes, absent, cache, notifier, nil, validator.New(), zap.NewNop(), SessionConfig{
		DefaultRadiusMeters: 50,
		CodeCacheTTL:        time.Minute,
	})
}

func ownedClassRepo() *mockClassRepo {
	return &mockClassRepo{classes: map[string]models.Class{
		"class-1": {ID: "class-1", Name: "Networks", FacultyID: "fac-1"},
	}}
}

func TestSessionServiceStartWithGeofenceDefaults(t *testing.T) {
	sessions := &mockSessionRepo{}
	cache := &mockCodeCache{}
	notifier := &mockSessionNotifier{}
	svc := newSessionService(sessions, ownedClassRepo(), &mockAbsentMarker{}, cache, notifier)

	lat, lng := 12.9716, 77.5946
	session, err := svc.Start(context.Background(), "fac-1", "class-1", models.StartSessionRequest{Latitude: &lat, Longitude: &lng})
	require.NoError(t, err)
	require.NotNil(t, session.GeneratedCode)
	assert.Len(t, *session.GeneratedCode, 6)
	require.NotNil(t, session.RadiusMeters)
	assert.Equal(t, 50.0, *session.RadiusMeters)
	assert.True(t, session.HasGeofence())

	// code is cached and the roster is notified
	_, ok := cache.byCode[*session.GeneratedCode]
	assert.True(t, ok)
	assert.Equal(t, []int64{session.ID}, notifier.started)
}

func TestSessionServiceStartReusesActiveSession(t *testing.T) {
	sessions := &mockSessionRepo{}
	svc := newSessionService(sessions, ownedClassRepo(), &mockAbsentMarker{}, &mockCodeCache{}, &mockSessionNotifier{})

	first, err := svc.Start(context.Background(), "fac-1", "class-1", models.StartSessionRequest{})
	require.NoError(t, err)
	second, err := svc.Start(context.Background(), "fac-1", "class-1", models.StartSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, sessions.sessions, 1)
}

func TestSessionServiceStartRejectsPartialCoordinates(t *testing.T) {
	svc := newSessionService(&mockSessionRepo{}, ownedClassRepo(), &mockAbsentMarker{}, &mockCodeCache{}, &mockSessionNotifier{})

	lat := 12.9716
	_, err := svc.Start(context.Background(), "fac-1", "class-1", models.StartSessionRequest{Latitude: &lat})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceStartRequiresOwner(t *testing.T) {
	svc := newSessionService(&mockSessionRepo{}, ownedClassRepo(), &mockAbsentMarker{}, &mockCodeCache{}, &mockSessionNotifier{})

	_, err := svc.Start(context.Background(), "fac-2", "class-1", models.StartSessionRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceEndMarksAbsentAndEvictsCode(t *testing.T) {
	sessions := &mockSessionRepo{}
	absent := &mockAbsentMarker{count: 3}
	cache := &mockCodeCache{}
	svc := newSessionService(sessions, ownedClassRepo(), absent, cache, &mockSessionNotifier{})

	session, err := svc.Start(context.Background(), "fac-1", "class-1", models.StartSessionRequest{})
	require.NoError(t, err)

	marked, err := svc.End(context.Background(), "fac-1", "class-1", session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), marked)
	assert.Equal(t, []int64{session.ID}, absent.calls)
	assert.Equal(t, []string{*session.GeneratedCode}, cache.deleted)
	assert.Equal(t, models.SessionClosed, sessions.sessions[session.ID].Status)
}

func TestSessionServiceEndAlreadyClosed(t *testing.T) {
	sessions := &mockSessionRepo{}
	svc := newSessionService(sessions, ownedClassRepo(), &mockAbsentMarker{}, &mockCodeCache{}, &mockSessionNotifier{})

	session, err := svc.Start(context.Background(), "fac-1", "class-1", models.StartSessionRequest{})
	require.NoError(t, err)
	_, err = svc.End(context.Background(), "fac-1", "class-1", session.ID)
	require.NoError(t, err)

	_, err = svc.End(context.Background(), "fac-1", "class-1", session.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionClosed.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceActiveHidesCodeFromStudents(t *testing.T) {
	sessions := &mockSessionRepo{}
	classes := ownedClassRepo()
	classes.enrolled = map[string][]string{"class-1": {"stu-1"}}
	svc := newSessionService(sessions, classes, &mockAbsentMarker{}, &mockCodeCache{}, &mockSessionNotifier{})

	started, err := svc.Start(context.Background(), "fac-1", "class-1", models.StartSessionRequest{})
	require.NoError(t, err)

	forFaculty, err := svc.Active(context.Background(), "fac-1", models.RoleFaculty, "class-1")
	require.NoError(t, err)
	assert.NotNil(t, forFaculty.GeneratedCode)

	forStudent, err := svc.Active(context.Background(), "stu-1", models.RoleStudent, "class-1")
	require.NoError(t, err)
	assert.Nil(t, forStudent.GeneratedCode)
	assert.Equal(t, started.ID, forStudent.ID)
}

func TestSessionServiceActiveRejectsUnenrolledStudent(t *testing.T) {
	svc := newSessionService(&mockSessionRepo{}, ownedClassRepo(), &mockAbsentMarker{}, &mockCodeCache{}, &mockSessionNotifier{})

	_, err := svc.Active(context.Background(), "stu-9", models.RoleStudent, "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceActiveNoSession(t *testing.T) {
	svc := newSessionService(&mockSessionRepo{}, ownedClassRepo(), &mockAbsentMarker{}, &mockCodeCache{}, &mockSessionNotifier{})

	_, err := svc.Active(context.Background(), "fac-1", models.RoleFaculty, "class-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
