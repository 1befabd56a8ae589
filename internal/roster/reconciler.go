package roster

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
)

// DefaultCoolDown is how long a server snapshot is held off after a local
// toggle so it cannot clobber the change the user just made.
const DefaultCoolDown = 3500 * time.Millisecond

// ErrRowBusy is returned when a toggle arrives while the row's previous
// mutation is still in flight. The click is a no-op; the caller may retry
// once the row settles.
var ErrRowBusy = appErrors.New("ROW_BUSY", 409, "row update already in flight")

// RowKey identifies a roster row. Identity is resolved once at roster load:
// the student id when present, otherwise the normalised name. Merge sites
// compare keys only and never repeat the id-or-name fallback.
type RowKey string

// KeyFor builds the key for an attendance record.
func KeyFor(studentID *string, studentName string) RowKey {
	if studentID != nil && *studentID != "" {
		return RowKey("id:" + *studentID)
	}
	return RowKey("name:" + strings.ToLower(strings.TrimSpace(studentName)))
}

// keyForStudent builds the key for a roster entry. Roster entries always have
// an id, but records joining by name must land on the same key, so both keys
// are tracked per row.
func keyForStudent(s models.Student) (primary, byName RowKey) {
	return KeyFor(&s.UserID, s.Name), KeyFor(nil, s.Name)
}

// Marker issues the attendance mutation behind a toggle. Marking absent is a
// status write, not a delete.
type Marker interface {
	Mark(ctx context.Context, sessionID int64, studentID string, status models.AttendanceStatus) error
}

// Config tunes a Reconciler.
type Config struct {
	// CoolDown is the window after a local toggle during which snapshots are
	// ignored wholesale. Zero means DefaultCoolDown.
	CoolDown time.Duration
	// Clock overrides time.Now in tests.
	Clock func() time.Time
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// row is the per-student reconciliation state.
type row struct {
	student  models.Student
	attended bool
	inFlight bool
	version  uint64
}

// Reconciler merges locally-optimistic checkbox state with server-authoritative
// attendance snapshots for one session. All state is ephemeral; the server
// remains the source of truth once the cool-down elapses.
//
// Rows are independent: a toggle on one row never blocks another, and there is
// no ordering guarantee across rows beyond each row's own last resolved action.
type Reconciler struct {
	sessionID int64
	marker    Marker
	coolDown  time.Duration
	now       func() time.Time
	logger    *zap.Logger

	mu               sync.Mutex
	rows             map[RowKey]*row
	nameIndex        map[RowKey]RowKey
	seq              uint64
	lastUserActionAt time.Time
	hasInitialized   bool
	lastSnapshot     map[RowKey]bool
}

// New builds a Reconciler for the given session and roster.
func New(sessionID int64, students []models.Student, marker Marker, cfg Config) *Reconciler {
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = DefaultCoolDown
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := &Reconciler{
		sessionID: sessionID,
		marker:    marker,
		coolDown:  cfg.CoolDown,
		now:       cfg.Clock,
		logger:    cfg.Logger,
		rows:      make(map[RowKey]*row, len(students)),
		nameIndex: make(map[RowKey]RowKey, len(students)),
	}
	for _, s := range students {
		primary, byName := keyForStudent(s)
		r.rows[primary] = &row{student: s}
		r.nameIndex[byName] = primary
	}
	return r
}

// resolve maps a record key onto a roster row, following the name fallback.
func (r *Reconciler) resolve(key RowKey) (*row, bool) {
	if rw, ok := r.rows[key]; ok {
		return rw, true
	}
	if primary, ok := r.nameIndex[key]; ok {
		return r.rows[primary], true
	}
	return nil, false
}

// Stamp returns the current mutation sequence. Callers snapshot it before
// fetching so Apply can tell which rows the fetch could have observed.
func (r *Reconciler) Stamp() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Toggle flips a student's mark: optimistic local update first, then the
// mutation. While the row's request is in flight further toggles return
// ErrRowBusy. On failure the optimistic state is kept as-is (no rollback);
// the caller surfaces the error and the user retries.
func (r *Reconciler) Toggle(ctx context.Context, studentID string) (bool, error) {
	key := KeyFor(&studentID, "")

	r.mu.Lock()
	rw, ok := r.rows[key]
	if !ok {
		r.mu.Unlock()
		return false, appErrors.Clone(appErrors.ErrNotFound, "student not on roster")
	}
	if rw.inFlight {
		current := rw.attended
		r.mu.Unlock()
		return current, ErrRowBusy
	}
	rw.attended = !rw.attended
	rw.inFlight = true
	r.seq++
	rw.version = r.seq
	r.lastUserActionAt = r.now()
	want := rw.attended
	r.mu.Unlock()

	status := models.StatusAbsent
	if want {
		status = models.StatusPresent
	}
	err := r.marker.Mark(ctx, r.sessionID, studentID, status)

	r.mu.Lock()
	rw.inFlight = false
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("toggle mark failed",
			zap.Int64("session_id", r.sessionID),
			zap.String("student_id", studentID),
			zap.Error(err))
		return want, err
	}
	return want, nil
}

// Apply merges a server snapshot fetched at the given stamp.
//
// The whole snapshot is discarded while a local toggle is younger than the
// cool-down window (once initialised); outside the window rows are replaced
// from the server, except rows whose local version is newer than the stamp:
// the fetch cannot have observed those toggles, so the local value wins.
func (r *Reconciler) Apply(records []models.AttendanceRecord, stamp uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasInitialized && r.now().Sub(r.lastUserActionAt) < r.coolDown {
		return false
	}

	present := make(map[RowKey]bool, len(records))
	for _, rec := range records {
		if rec.SessionID != r.sessionID || !rec.Status.CountsPresent() {
			continue
		}
		key := KeyFor(rec.StudentID, rec.StudentName)
		if rw, ok := r.resolve(key); ok {
			primary, _ := keyForStudent(rw.student)
			present[primary] = true
		}
	}

	for key, rw := range r.rows {
		if rw.version > stamp {
			continue
		}
		rw.attended = present[key]
	}
	r.lastSnapshot = present
	r.hasInitialized = true
	return true
}

// Attended returns the ids currently checked. Order is unspecified.
func (r *Reconciler) Attended() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.rows))
	for _, rw := range r.rows {
		if rw.attended {
			ids = append(ids, rw.student.UserID)
		}
	}
	return ids
}

// IsAttended reports the current local mark for a student.
func (r *Reconciler) IsAttended(studentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rw, ok := r.rows[KeyFor(&studentID, "")]
	return ok && rw.attended
}

// InFlight reports whether a mutation is outstanding for the student's row.
func (r *Reconciler) InFlight(studentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rw, ok := r.rows[KeyFor(&studentID, "")]
	return ok && rw.inFlight
}

// SubmitAll performs the full-roster diff-and-resubmit fallback: every checked
// student is re-marked PRESENT, and a student is marked ABSENT only when the
// server's last known state says PRESENT but the local state wants them
// unmarked. Rows are processed sequentially; the first failure aborts.
func (r *Reconciler) SubmitAll(ctx context.Context) (int, error) {
	r.mu.Lock()
	type item struct {
		id     string
		status models.AttendanceStatus
	}
	plan := make([]item, 0, len(r.rows))
	for key, rw := range r.rows {
		if rw.attended {
			plan = append(plan, item{id: rw.student.UserID, status: models.StatusPresent})
		} else if r.lastSnapshot[key] {
			plan = append(plan, item{id: rw.student.UserID, status: models.StatusAbsent})
		}
	}
	r.lastUserActionAt = r.now()
	r.mu.Unlock()

	marked := 0
	for _, it := range plan {
		if err := r.marker.Mark(ctx, r.sessionID, it.id, it.status); err != nil {
			return marked, err
		}
		if it.status == models.StatusPresent {
			marked++
		}
	}
	return marked, nil
}
