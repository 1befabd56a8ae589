package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Achyut-shekhar/Attendx/internal/client"
	"github.com/Achyut-shekhar/Attendx/internal/locate"
	"github.com/Achyut-shekhar/Attendx/internal/poll"
	"github.com/Achyut-shekhar/Attendx/internal/roster"
)

// staticProvider reports a fixed position, standing in for a device
// geolocation source on machines without one.
type staticProvider struct {
	lat, lng, accuracy float64
	delay              time.Duration
}

func (p staticProvider) CurrentPosition(ctx context.Context, opts locate.Options) (locate.Position, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return locate.Position{}, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	return locate.Position{Latitude: p.lat, Longitude: p.lng, Accuracy: p.accuracy}, nil
}

func main() {
	var (
		baseURL  string
		email    string
		password string
		classID  string
		interval time.Duration
		lat      float64
		lng      float64
		radius   float64
		geofence bool
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8000", "API base URL")
	flag.StringVar(&email, "email", "", "faculty email")
	flag.StringVar(&password, "password", "", "faculty password")
	flag.StringVar(&classID, "class", "", "class id to take attendance for")
	flag.DurationVar(&interval, "interval", 3*time.Second, "live view refresh interval")
	flag.Float64Var(&lat, "lat", 0, "session latitude (with -geofence)")
	flag.Float64Var(&lng, "lng", 0, "session longitude (with -geofence)")
	flag.Float64Var(&radius, "radius", 0, "geofence radius in meters (0 = server default)")
	flag.BoolVar(&geofence, "geofence", false, "open the session with a geofence")
	flag.Parse()

	if email == "" || password == "" || classID == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(client.Config{BaseURL: baseURL})
	if _, err := api.Login(ctx, email, password); err != nil {
		logger.Sugar().Fatalw("login failed", "error", err)
	}

	req := client.StartSessionRequest{}
	if geofence {
		position := capturePosition(ctx, logger, lat, lng)
		req.Latitude = &position.Latitude
		req.Longitude = &position.Longitude
		if radius > 0 {
			req.RadiusMeters = &radius
		}
	}

	session, err := api.StartSession(ctx, classID, req)
	if err != nil {
		logger.Sugar().Fatalw("failed to start session", "error", err)
	}
	code := ""
	if session.GeneratedCode != nil {
		code = *session.GeneratedCode
	}
	fmt.Printf("session %d open, code %s\n", session.ID, code)

	students, err := api.Roster(ctx, classID)
	if err != nil {
		logger.Sugar().Fatalw("failed to load roster", "error", err)
	}
	rec := roster.New(session.ID, students, api, roster.Config{Logger: logger})

	poller := poll.New(poll.Config{Interval: interval, Logger: logger})
	err = poller.Start(ctx, func(ctx context.Context, silent bool) error {
		stamp := rec.Stamp()
		records, err := api.Snapshot(ctx, session.ID)
		if err != nil {
			return err
		}
		rec.Apply(records, stamp)
		return nil
	})
	if err != nil {
		logger.Sugar().Fatalw("failed to start live view", "error", err)
	}
	defer poller.Stop()

	idByName := make(map[string]string, len(students))
	for _, s := range students {
		idByName[strings.ToLower(strings.TrimSpace(s.Name))] = s.UserID
	}

	fmt.Println("type a student name or id to toggle, 'list', 'submit', 'end'")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "list":
			for _, id := range rec.Attended() {
				fmt.Println("  present:", id)
			}
		case "submit":
			marked, err := rec.SubmitAll(ctx)
			if err != nil {
				fmt.Println("submit failed:", err)
				continue
			}
			fmt.Printf("submitted, %d marks written\n", marked)
		case "end":
			poller.Stop()
			if err := api.EndSession(ctx, classID, session.ID); err != nil {
				logger.Sugar().Fatalw("failed to end session", "error", err)
			}
			fmt.Println("session closed")
			return
		default:
			id := line
			if mapped, ok := idByName[strings.ToLower(line)]; ok {
				id = mapped
			}
			attended, err := rec.Toggle(ctx, id)
			if err != nil {
				fmt.Println("toggle failed:", err)
				continue
			}
			if attended {
				fmt.Println("marked present")
			} else {
				fmt.Println("marked absent")
			}
		}
	}
}

// capturePosition runs the two-phase capture against the flag-provided
// coordinates so the session geofence goes through the same path a real
// device location would.
func capturePosition(ctx context.Context, logger *zap.Logger, lat, lng float64) locate.Position {
	capturer := locate.NewCapturer(staticProvider{lat: lat, lng: lng, accuracy: 15}, locate.Config{
		HighAccuracyTimeout: 10 * time.Second,
		LowAccuracyTimeout:  5 * time.Second,
		Logger:              logger,
	})
	position, err := capturer.Capture(ctx)
	if err != nil {
		var hint string
		var capErr *locate.CaptureError
		if errors.As(err, &capErr) {
			hint = capErr.Hint()
		}
		logger.Sugar().Fatalw("location capture failed", "error", err, "hint", hint)
	}
	return position
}
