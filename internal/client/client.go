package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
)

// envelope mirrors pkg/response.Envelope on the wire.
type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

// Client is a thin typed wrapper over the attendance REST API. It carries the
// bearer token and decodes the common response envelope; it does not retry.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Config for a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// New builds a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// SetToken replaces the bearer token after login.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	if env.Error != nil {
		return env.Error
	}
	if resp.StatusCode >= 400 {
		return appErrors.New(appErrors.ErrInternal.Code, resp.StatusCode, resp.Status)
	}
	if dest != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

// Login authenticates and stores the issued token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var out models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.AccessToken
	return &out, nil
}

// StartSessionRequest opens a session, optionally with a geofence.
type StartSessionRequest struct {
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	RadiusMeters *float64 `json:"radius_meters,omitempty"`
}

// StartSession opens (or returns the already-active) session for a class.
func (c *Client) StartSession(ctx context.Context, classID string, req StartSessionRequest) (*models.Session, error) {
	var out models.Session
	path := fmt.Sprintf("/faculty/classes/%s/sessions", classID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EndSession closes a session; unmarked students become ABSENT server-side.
func (c *Client) EndSession(ctx context.Context, classID string, sessionID int64) error {
	path := fmt.Sprintf("/faculty/classes/%s/sessions/%d/end", classID, sessionID)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// ActiveSession returns the class's ACTIVE session, or nil when none exists.
func (c *Client) ActiveSession(ctx context.Context, classID string) (*models.Session, error) {
	var out models.Session
	path := fmt.Sprintf("/classes/%s/active-session", classID)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		var appErr *appErrors.Error
		if ok := asAppError(err, &appErr); ok && appErr.Code == appErrors.ErrNotFound.Code {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// Roster lists the students enrolled in a class.
func (c *Client) Roster(ctx context.Context, classID string) ([]models.Student, error) {
	var out []models.Student
	path := fmt.Sprintf("/faculty/classes/%s/students", classID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot returns the attendance records for a session.
func (c *Client) Snapshot(ctx context.Context, sessionID int64) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	path := fmt.Sprintf("/sessions/%d/attendance", sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Mark writes a student's status for a session. It satisfies roster.Marker.
func (c *Client) Mark(ctx context.Context, sessionID int64, studentID string, status models.AttendanceStatus) error {
	path := fmt.Sprintf("/sessions/%d/attendance", sessionID)
	body := map[string]interface{}{
		"student_id": studentID,
		"status":     status,
	}
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// SubmitCode submits an attendance code with optional coordinates and returns
// the server's verdict. The client never computes accept/reject itself.
func (c *Client) SubmitCode(ctx context.Context, sub models.CodeSubmission) (*models.CodeVerdict, error) {
	var out models.CodeVerdict
	if err := c.do(ctx, http.MethodPost, "/attendance/submit-code", sub, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func asAppError(err error, target **appErrors.Error) bool {
	e := appErrors.FromError(err)
	if e == nil {
		return false
	}
	*target = e
	return true
}
