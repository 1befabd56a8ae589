package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
)

func TestMarkSendsStatusWrite(t *testing.T) {
	var got struct {
		StudentID string `json:"student_id"`
		Status    string `json:"status"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sessions/42/attendance", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"session_id":42,"student_id":"u1","student_name":"Alice","attendance_status":"ABSENT"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "tok"})
	// Explicit absent is a status write, not a delete.
	err := c.Mark(context.Background(), 42, "u1", models.StatusAbsent)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.StudentID)
	assert.Equal(t, "ABSENT", got.Status)
	assert.Equal(t, "Bearer tok", auth)
}

func TestSubmitCodeDecodesVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/attendance/submit-code", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"session_id":9,"status":"ABSENT","distance":182.4,"within_radius":false,"message":"Outside zone"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	lat, lon := 12.97, 77.59
	verdict, err := c.SubmitCode(context.Background(), models.CodeSubmission{
		StudentID: "u1", Code: "QX41ZP", Latitude: &lat, Longitude: &lon,
	})
	require.NoError(t, err)
	assert.False(t, verdict.WithinRadius)
	assert.Equal(t, models.StatusAbsent, verdict.Status)
	require.NotNil(t, verdict.Distance)
	assert.InDelta(t, 182.4, *verdict.Distance, 1e-9)
}

func TestEnvelopeErrorSurfacesTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_CODE","message":"invalid or expired code","status":400}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.SubmitCode(context.Background(), models.CodeSubmission{StudentID: "u1", Code: "nope"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "INVALID_CODE", appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestActiveSessionNilWhenNone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"no active session","status":404}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	session, err := c.ActiveSession(context.Background(), "c1")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSnapshotDecodesRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/7/attendance", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"session_id":7,"student_id":"u1","student_name":"Alice","attendance_status":"PRESENT"},
			{"session_id":7,"student_name":"Bob","attendance_status":"ABSENT"}
		]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	records, err := c.Snapshot(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0].StudentID)
	assert.Equal(t, "u1", *records[0].StudentID)
	assert.Nil(t, records[1].StudentID)
	assert.Equal(t, "Bob", records[1].StudentName)
}

func TestLoginStoresToken(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			_, _ = w.Write([]byte(`{"data":{"access_token":"issued","expires_in":3600,"user":{"id":"u1","email":"a@b.c","name":"A","role":"FACULTY"}}}`))
		default:
			sawAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"data":[]}`))
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	resp, err := c.Login(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, models.RoleFaculty, resp.User.Role)

	_, err = c.Roster(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer issued", sawAuth)
}
