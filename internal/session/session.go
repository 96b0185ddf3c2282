// Package session coordinates one scanning session: the registry, the
// history recorder, the active scanner and the once-per-second poll that
// ties them together. It also exports and imports the session log as CSV.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/beaconradar/internal/beacon"
	"github.com/banshee-data/beaconradar/internal/fsutil"
	"github.com/banshee-data/beaconradar/internal/history"
	"github.com/banshee-data/beaconradar/internal/monitoring"
	"github.com/banshee-data/beaconradar/internal/query"
	"github.com/banshee-data/beaconradar/internal/scanner"
	"github.com/banshee-data/beaconradar/internal/timeutil"
)

const (
	DefaultThreshold    = 3 * time.Second
	DefaultPollInterval = time.Second
)

var (
	// ErrScanning is returned by operations that need the scanner paused.
	ErrScanning = errors.New("scanner is running; pause it first")
	// ErrNothingToExport is returned when the session log is empty.
	ErrNothingToExport = errors.New("no readings to export")
	// ErrIO wraps file and stream failures during export and import.
	ErrIO = errors.New("session i/o error")
)

var logf = monitoring.Prefixed("session")

// State is the coarse lifecycle state of a session.
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
	StatePaused   State = "paused"
	StateImported State = "imported"
)

// Options configures a Session. Zero values take defaults.
type Options struct {
	Clock           timeutil.Clock
	FS              fsutil.FileSystem
	Threshold       time.Duration
	PollInterval    time.Duration
	IngestBuffer    int
	HistoryCapacity int
}

// Update is published to subscribers after every poll.
type Update struct {
	Time     time.Time              `json:"time"`
	State    State                  `json:"state"`
	Sort     query.SortState        `json:"sort"`
	Beacons  []beacon.DisplayRecord `json:"beacons"`
	Recorded int                    `json:"recorded"`
}

// Status summarises the session for the API.
type Status struct {
	ID         string        `json:"session_id"`
	StartedAt  time.Time     `json:"started_at"`
	State      State         `json:"state"`
	Devices    int           `json:"devices"`
	LogRecords int           `json:"log_records"`
	Threshold  time.Duration `json:"threshold_ns"`
	Dropped    uint64        `json:"dropped_detections"`
}

// Session owns the registry, recorder and scanner of one run.
type Session struct {
	clock     timeutil.Clock
	fs        fsutil.FileSystem
	threshold time.Duration
	interval  time.Duration

	reg *beacon.Registry
	ing *beacon.Ingestor
	rec *history.Recorder

	mu        sync.Mutex
	scanner   scanner.Scanner
	state     State
	id        string
	startedAt time.Time
	sort      query.SortState

	subMu sync.Mutex
	subs  map[string]chan Update
}

// New creates an idle session.
func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.FS == nil {
		opts.FS = fsutil.OSFileSystem{}
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	reg := beacon.NewRegistry(opts.Clock)
	return &Session{
		clock:     opts.Clock,
		fs:        opts.FS,
		threshold: opts.Threshold,
		interval:  opts.PollInterval,
		reg:       reg,
		ing:       beacon.NewIngestor(reg, opts.IngestBuffer),
		rec:       history.NewRecorderWithCapacity(opts.HistoryCapacity),
		state:     StateIdle,
		id:        uuid.NewString(),
		startedAt: opts.Clock.Now(),
		sort:      query.DefaultSort(),
		subs:      make(map[string]chan Update),
	}
}

// Submit queues a detection. It is the scanner.Handler for this session.
func (s *Session) Submit(d beacon.Detection) { s.ing.Submit(d) }

// SetScanner installs the detection source. A nil scanner makes Start and
// Pause only toggle state.
func (s *Session) SetScanner(sc scanner.Scanner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanner = sc
}

// Threshold returns the default activity threshold.
func (s *Session) Threshold() time.Duration { return s.threshold }

// Run applies detections and polls until ctx is done, then stops the scanner.
func (s *Session) Run(ctx context.Context) error {
	go s.ing.Run(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Pause(stopCtx); err != nil {
				logf("stopping scanner on shutdown: %v", err)
			}
			return ctx.Err()
		case <-ticker.C():
			s.Poll()
		}
	}
}

// Poll runs one poll cycle: queued detections are applied, every device gets
// a series, the snapshot is recorded when scanning, and the result is
// published. The cycle holds the session lock so a concurrent Reset or
// Import lands either before or after it.
func (s *Session) Poll() Update {
	s.mu.Lock()
	s.ing.Drain()
	state, sortState := s.state, s.sort
	now := s.clock.Now()
	snap := s.reg.Snapshot(s.threshold, "")
	recorded := 0
	if state == StateScanning {
		recorded = s.rec.Record(now, snap)
	} else {
		s.rec.Track(snap)
	}
	s.mu.Unlock()

	u := Update{
		Time:     now,
		State:    state,
		Sort:     sortState,
		Beacons:  query.Apply(snap, math.MinInt, sortState),
		Recorded: recorded,
	}
	s.publish(u)
	return u
}

// Start begins scanning. Starting an already scanning session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateScanning {
		return nil
	}
	if s.scanner != nil {
		if err := s.scanner.Start(ctx); err != nil {
			return fmt.Errorf("start scanner: %w", err)
		}
	}
	s.state = StateScanning
	logf("scanning started (session %s)", s.id)
	return nil
}

// Pause stops the scanner and keeps all collected data.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateScanning {
		return nil
	}
	if s.scanner != nil {
		if err := s.scanner.Stop(ctx); err != nil {
			return fmt.Errorf("stop scanner: %w", err)
		}
	}
	s.state = StatePaused
	logf("scanning paused (session %s)", s.id)
	return nil
}

// Stop pauses scanning and clears the session.
func (s *Session) Stop(ctx context.Context) error {
	if err := s.Pause(ctx); err != nil {
		return err
	}
	s.Reset()
	return nil
}

// Reset clears the registry, every series and the export log, and starts a
// new session id. The scanning state is left as is.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ing.Drain()
	s.reg.Reset()
	s.rec.Reset()
	old := s.id
	s.id = uuid.NewString()
	s.startedAt = s.clock.Now()
	if s.state != StateScanning {
		s.state = StateIdle
	}
	logf("session %s reset, new session %s", old, s.id)
}

// Scanning reports whether the scanner is running.
func (s *Session) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateScanning
}

// Status reports the session summary.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{ID: s.id, StartedAt: s.startedAt, State: s.state}
	s.mu.Unlock()
	st.Devices = s.reg.Len()
	st.LogRecords = s.rec.LogLen()
	st.Threshold = s.threshold
	st.Dropped = s.ing.Dropped()
	return st
}

// ID returns the current session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// StartedAt returns when the current session began.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Snapshot classifies every device against threshold (the session default
// when zero) with an optional name filter.
func (s *Session) Snapshot(threshold time.Duration, nameFilter string) []beacon.DisplayRecord {
	if threshold <= 0 {
		threshold = s.threshold
	}
	return s.reg.Snapshot(threshold, nameFilter)
}

// Query is the parameter set of a display request.
type Query struct {
	Threshold  time.Duration
	NameFilter string
	// MinRSSI hides devices weaker than it. Nil shows every device.
	MinRSSI *int
	// Sort overrides the session sort state when set.
	Sort *query.SortState
}

// Display returns the filtered and sorted device list.
func (s *Session) Display(q Query) []beacon.DisplayRecord {
	sortState := s.SortState()
	if q.Sort != nil {
		sortState = *q.Sort
	}
	minRSSI := math.MinInt
	if q.MinRSSI != nil {
		minRSSI = *q.MinRSSI
	}
	return query.Apply(s.Snapshot(q.Threshold, q.NameFilter), minRSSI, sortState)
}

// SortState returns the current display sort.
func (s *Session) SortState() query.SortState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sort
}

// SelectSort applies a header click on column c.
func (s *Session) SelectSort(c query.Column) query.SortState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sort = s.sort.Select(c)
	return s.sort
}

// History returns the samples of id inside window w.
func (s *Session) History(id string, w history.Window) ([]int, bool) {
	return s.rec.Window(id, w.Samples())
}

// HistoryIDs lists the devices that have a series.
func (s *Session) HistoryIDs() []string { return s.rec.IDs() }

// Observation returns the latest observation of id.
func (s *Session) Observation(id string) (beacon.Observation, bool) {
	return s.reg.Get(id)
}

// Log returns a copy of the export log.
func (s *Session) Log() []history.ExportRecord { return s.rec.Log() }

// Subscribe registers for poll updates. Slow subscribers miss updates rather
// than blocking the poll.
func (s *Session) Subscribe() (string, <-chan Update) {
	id := uuid.NewString()
	ch := make(chan Update, 1)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscription.
func (s *Session) Unsubscribe(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Session) publish(u Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
