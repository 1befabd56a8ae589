package locate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Position is a captured device location. It lives only for the current
// submission attempt and is never persisted.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

// Options mirrors the platform geolocation request options. MaximumAge is
// always zero: a stale cached fix is worse than a slow fresh one here.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
}

// ErrorCode classifies capture failures.
type ErrorCode int

const (
	ErrOther ErrorCode = iota
	ErrPermissionDenied
	ErrPositionUnavailable
	ErrTimeout
)

// CaptureError carries the failure class plus a user-facing remediation hint.
type CaptureError struct {
	Code ErrorCode
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("location capture: %s: %v", e.Hint(), e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Hint returns the remediation message for the failure class.
func (e *CaptureError) Hint() string {
	switch e.Code {
	case ErrPermissionDenied:
		return "allow location access in your device settings"
	case ErrPositionUnavailable:
		return "location unavailable, try enabling Wi-Fi or moving near a window"
	case ErrTimeout:
		return "location request timed out, make sure Wi-Fi is on and retry"
	default:
		return "could not determine location"
	}
}

// CodeOf extracts the failure class from any error.
func CodeOf(err error) ErrorCode {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrOther
}

// Provider obtains the device position, honouring Options.Timeout.
type Provider interface {
	CurrentPosition(ctx context.Context, opts Options) (Position, error)
}

// Status is the capture flow state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

const (
	defaultHighAccuracyTimeout = 60 * time.Second
	defaultLowAccuracyTimeout  = 30 * time.Second
)

// Config tunes a Capturer.
type Config struct {
	HighAccuracyTimeout time.Duration
	LowAccuracyTimeout  time.Duration
	Logger              *zap.Logger
}

// Capturer runs the two-phase location capture: a high-accuracy attempt with
// a long timeout, then, on timeout specifically, a single low-accuracy retry
// with a shorter one. Permission or availability failures are terminal right
// away since retrying cannot fix them. This degrades gracefully indoors
// where a GPS fix is slow or never arrives.
type Capturer struct {
	provider    Provider
	highTimeout time.Duration
	lowTimeout  time.Duration
	logger      *zap.Logger

	mu     sync.Mutex
	status Status
}

// NewCapturer builds a capturer around the given provider.
func NewCapturer(provider Provider, cfg Config) *Capturer {
	if cfg.HighAccuracyTimeout <= 0 {
		cfg.HighAccuracyTimeout = defaultHighAccuracyTimeout
	}
	if cfg.LowAccuracyTimeout <= 0 {
		cfg.LowAccuracyTimeout = defaultLowAccuracyTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Capturer{
		provider:    provider,
		highTimeout: cfg.HighAccuracyTimeout,
		lowTimeout:  cfg.LowAccuracyTimeout,
		logger:      cfg.Logger,
		status:      StatusIdle,
	}
}

// Status returns the current flow state.
func (c *Capturer) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Capturer) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Capture obtains the device position. A concurrent Capture while one is
// loading returns ErrBusy; a finished flow can be retried by calling Capture
// again (explicit user-triggered retry).
func (c *Capturer) Capture(ctx context.Context) (Position, error) {
	c.mu.Lock()
	if c.status == StatusLoading {
		c.mu.Unlock()
		return Position{}, ErrBusy
	}
	c.status = StatusLoading
	c.mu.Unlock()

	pos, err := c.attempt(ctx, Options{HighAccuracy: true, Timeout: c.highTimeout})
	if err != nil && CodeOf(err) == ErrTimeout {
		c.logger.Info("high-accuracy capture timed out, retrying low-accuracy")
		pos, err = c.attempt(ctx, Options{HighAccuracy: false, Timeout: c.lowTimeout})
	}

	if err != nil {
		c.setStatus(StatusError)
		if CodeOf(err) == ErrOther {
			err = &CaptureError{Code: ErrOther, Err: err}
		}
		return Position{}, err
	}

	c.setStatus(StatusSuccess)
	c.logger.Debug("location captured",
		zap.Float64("latitude", pos.Latitude),
		zap.Float64("longitude", pos.Longitude),
		zap.Float64("accuracy", pos.Accuracy))
	return pos, nil
}

func (c *Capturer) attempt(ctx context.Context, opts Options) (Position, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	pos, err := c.provider.CurrentPosition(ctx, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Position{}, &CaptureError{Code: ErrTimeout, Err: err}
		}
		return Position{}, err
	}
	return pos, nil
}

// ErrBusy is returned when a capture is already in progress.
var ErrBusy = errors.New("location capture already in progress")
