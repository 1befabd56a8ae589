package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	"github.com/Achyut-shekhar/Attendx/internal/service"
)

type stubUserRepo struct {
	users map[string]models.User
}

func (m *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]models.User)
	}
	if user.ID == "" {
		user.ID = "usr-new"
	}
	m.users[user.ID] = *user
	return nil
}

func (m *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *stubUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		user := u
		return &user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

type stubClassRepo struct{}

func (stubClassRepo) Create(ctx context.Context, class *models.Class) error { return nil }
func (stubClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return nil, sql.ErrNoRows
}
func (stubClassRepo) FindByJoinCode(ctx context.Context, joinCode string) (*models.Class, error) {
	return nil, sql.ErrNoRows
}
func (stubClassRepo) ListByFaculty(ctx context.Context, facultyID string) ([]models.Class, error) {
	return nil, nil
}
func (stubClassRepo) ListEnrolled(ctx context.Context, studentID string) ([]models.EnrolledClass, error) {
	return nil, nil
}
func (stubClassRepo) Delete(ctx context.Context, id string) (bool, error) { return false, nil }
func (stubClassRepo) Enroll(ctx context.Context, classID, studentID string) error {
	return nil
}
func (stubClassRepo) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	return false, nil
}
func (stubClassRepo) Roster(ctx context.Context, classID string) ([]models.Student, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authSvc := service.NewAuthService(&stubUserRepo{}, validator.New(), zap.NewNop(), service.AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "attendx-test",
	})
	classSvc := service.NewClassService(stubClassRepo{}, validator.New(), zap.NewNop())

	r := gin.New()
	RegisterRoutes(r, Handlers{
		Auth:         NewAuthHandler(authSvc),
		Class:        NewClassHandler(classSvc),
		Session:      &SessionHandler{},
		Attendance:   &AttendanceHandler{},
		Notification: &NotificationHandler{},
		Report:       &ReportHandler{},
		AuthService:  authSvc,
	})
	return r, authSvc
}

func doJSON(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, r *gin.Engine, email, role string) string {
	t.Helper()
	body := `{"email":"` + email + `","name":"Test","password":"secret1","role":"` + role + `"}`
	w := doJSON(r, http.MethodPost, "/auth/register", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var env struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotEmpty(t, env.Data.AccessToken)
	return env.Data.AccessToken
}

func TestAuthRoutesRegisterLoginMe(t *testing.T) {
	r, _ := newTestRouter(t)

	token := registerAndLogin(t, r, "alice@example.com", "STUDENT")

	w := doJSON(r, http.MethodGet, "/auth/me", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data models.UserInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "alice@example.com", env.Data.Email)
	assert.Equal(t, models.RoleStudent, env.Data.Role)
}

func TestAuthRoutesRejectMissingToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodGet, "/notifications", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutesEnforceRoles(t *testing.T) {
	r, _ := newTestRouter(t)

	studentToken := registerAndLogin(t, r, "stu@example.com", "STUDENT")
	w := doJSON(r, http.MethodPost, "/faculty/classes", studentToken, `{"class_name":"Networks"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	facultyToken := registerAndLogin(t, r, "fac@example.com", "FACULTY")
	w = doJSON(r, http.MethodPost, "/attendance/submit-code", facultyToken, `{"code":"123456"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRoutesLoginWrongPassword(t *testing.T) {
	r, _ := newTestRouter(t)
	registerAndLogin(t, r, "bob@example.com", "STUDENT")

	w := doJSON(r, http.MethodPost, "/auth/login", "", `{"email":"bob@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
}
