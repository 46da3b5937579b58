// Package discovery owns the detection state of one page: it runs the
// scanners, deduplicates their candidates into records, and keeps the result
// set current as the page mutates.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bugmaschine/vidsniff/internal/dom"
	"github.com/bugmaschine/vidsniff/internal/metrics"
	"github.com/bugmaschine/vidsniff/internal/scanner"
	"github.com/google/uuid"
	"github.com/r3labs/diff/v3"
)

var ErrClosed = errors.New("session is closed")

type State int32

const (
	Idle State = iota
	Scanning
)

func (s State) String() string {
	if s == Scanning {
		return "scanning"
	}
	return "idle"
}

// Reason says what triggered a scan.
type Reason string

const (
	ReasonStart    Reason = "start"
	ReasonRefresh  Reason = "refresh"
	ReasonMutation Reason = "mutation"
)

// Report summarizes one scan. Err is set when no snapshot could be taken or
// when single scanners failed; neither ever fails the scan as a whole.
type Report struct {
	Reason     Reason
	Videos     int
	Candidates int
	PerScanner map[string]int
	Failed     []string
	Err        error
	Elapsed    time.Duration
}

type Option func(*Session)

// WithScanners replaces the default scanner list.
func WithScanners(scanners ...scanner.Scanner) Option {
	return func(s *Session) { s.scanners = scanners }
}

func WithDebounce(d time.Duration) Option {
	return func(s *Session) { s.debounce = d }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithOnUpdate registers fn to receive every newly published result set. fn
// runs on the scanning goroutine and must not call back into the session's
// scan operations.
func WithOnUpdate(fn func([]Record)) Option {
	return func(s *Session) { s.onUpdate = fn }
}

// Session is the detection state of a single page view.
type Session struct {
	id       uuid.UUID
	source   dom.Source
	scanners []scanner.Scanner
	debounce time.Duration
	log      *slog.Logger
	onUpdate func([]Record)

	// ctx bounds mutation-triggered scans and the page observation.
	ctx    context.Context
	cancel context.CancelFunc

	// scanMu serializes scans; ids is only touched while holding it.
	scanMu sync.Mutex
	ids    Counter

	state      atomic.Int32
	closed     atomic.Bool
	videos     atomic.Pointer[[]Record]
	lastDoc    atomic.Pointer[dom.Document]
	lastReport atomic.Pointer[Report]

	watchMu  sync.Mutex
	watcher  *Watcher
	watching bool
}

func NewSession(source dom.Source, opts ...Option) *Session {
	s := &Session{
		id:       uuid.New(),
		source:   source,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scanners == nil {
		s.scanners = scanner.Default(scanner.Options{MaxBackgroundElements: scanner.DefaultMaxBackgroundElements})
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("session", s.id.String()[:8])
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.watcher = NewWatcher(s.debounce, s.onMutation, s.log)

	empty := []Record{}
	s.videos.Store(&empty)
	return s
}

func (s *Session) ID() string { return s.id.String() }

func (s *Session) State() State { return State(s.state.Load()) }

// Videos returns a copy of the last completed result set. It never blocks on
// a running scan.
func (s *Session) Videos() []Record {
	return slices.Clone(*s.videos.Load())
}

// LastReport returns the report of the most recent scan, if any.
func (s *Session) LastReport() (Report, bool) {
	r := s.lastReport.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

// StartDetection scans the page and, when the source can report mutations,
// starts watching it. Calling it again re-scans.
func (s *Session) StartDetection(ctx context.Context) Report {
	report := s.scan(ctx, ReasonStart, false)
	if s.closed.Load() {
		return report
	}

	obs, ok := s.source.(dom.Observer)
	if !ok {
		return report
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watching {
		return report
	}
	if err := s.watcher.Start(s.ctx, obs); err != nil {
		s.log.Warn("Failed to observe page mutations", "err", err)
		return report
	}
	s.watching = true
	s.log.Debug("Watching page mutations", "debounce", s.debounce)
	return report
}

// Refresh drops any pending mutation re-scan, restarts ids at 1 and rebuilds
// the result set from scratch. Until the new set is complete the old one
// stays visible.
func (s *Session) Refresh(ctx context.Context) Report {
	s.watcher.Cancel()
	return s.scan(ctx, ReasonRefresh, true)
}

// Resolve looks up the element rec was derived from in the latest snapshot.
func (s *Session) Resolve(rec Record) (dom.Element, bool) {
	return rec.ElementRef.Resolve(s.lastDoc.Load())
}

// Close stops watching the page, waits for a running scan and clears all
// state. Later scan requests are no-ops.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.watcher.Stop()
	s.cancel()

	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	s.ids.Reset()
	empty := []Record{}
	s.videos.Store(&empty)
	s.lastDoc.Store(nil)
	metrics.VideosCurrent.Set(0)
	s.log.Debug("Session closed")
}

func (s *Session) onMutation() {
	s.scan(s.ctx, ReasonMutation, false)
}

func (s *Session) scan(ctx context.Context, reason Reason, reset bool) Report {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if s.closed.Load() {
		return Report{Reason: reason, Err: ErrClosed}
	}

	s.state.Store(int32(Scanning))
	metrics.ScanInProgress.Set(1)
	defer func() {
		s.state.Store(int32(Idle))
		metrics.ScanInProgress.Set(0)
	}()

	start := time.Now()
	report := Report{Reason: reason}
	if reset {
		s.ids.Reset()
	}

	doc, err := s.source.Snapshot(ctx)
	if err != nil {
		metrics.SnapshotFailures.Inc()
		report.Err = fmt.Errorf("failed to snapshot page: %w", err)
		report.Elapsed = time.Since(start)
		if reset {
			s.log.Warn("Snapshot failed, result set cleared", "reason", reason, "err", err)
			s.publish(nil)
		} else {
			s.log.Warn("Snapshot failed, keeping previous result set", "reason", reason, "err", err)
		}
		s.lastReport.Store(&report)
		return report
	}

	run := scanner.Run(doc, s.scanners)
	cands := run.Candidates()
	records := Deduplicate(doc, cands, &s.ids)

	s.lastDoc.Store(doc)
	s.publish(records)

	report.Videos = len(records)
	report.Candidates = len(cands)
	report.PerScanner = make(map[string]int, len(run.Results))
	for _, res := range run.Results {
		report.PerScanner[res.Name] = len(res.Candidates)
	}
	report.Failed = run.Failed()
	report.Err = run.Err
	report.Elapsed = time.Since(start)

	metrics.ScansTotal.WithLabelValues(string(reason)).Inc()
	metrics.ScanDuration.WithLabelValues(string(reason)).Observe(report.Elapsed.Seconds())
	s.lastReport.Store(&report)

	s.log.Info("Scan complete", "reason", reason, "videos", report.Videos, "candidates", report.Candidates, "elapsed", report.Elapsed)
	return report
}

// publish swaps in a complete result set.
func (s *Session) publish(records []Record) {
	if records == nil {
		records = []Record{}
	}
	old := s.videos.Swap(&records)
	metrics.VideosCurrent.Set(float64(len(records)))

	s.logChanges(*old, records)
	if s.onUpdate != nil {
		s.onUpdate(slices.Clone(records))
	}
}

func (s *Session) logChanges(old, cur []Record) {
	if !s.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	changes, err := diff.Diff(summarize(old), summarize(cur))
	if err != nil {
		s.log.Error("Failed to diff result sets", "err", err)
		return
	}
	for _, c := range changes {
		s.log.Debug("Result set changed", "change", c.Type, "url", strings.Join(c.Path, "."), "from", c.From, "to", c.To)
	}
}

// summarize keys a result set by URL; ids are left out since they change on
// every scan.
func summarize(records []Record) map[string]string {
	m := make(map[string]string, len(records))
	for _, r := range records {
		m[r.URL] = r.Format + " " + r.Quality
	}
	return m
}
