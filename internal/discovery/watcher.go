package discovery

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bugmaschine/vidsniff/internal/dom"
	"github.com/bugmaschine/vidsniff/internal/metrics"
)

// DefaultDebounce is how long the page must stay quiet after a relevant
// mutation before a re-scan runs.
const DefaultDebounce = 500 * time.Millisecond

// Watcher turns mutation batches into debounced re-scans. At most one re-scan
// is pending at any time; every relevant batch pushes it back by the full
// delay.
type Watcher struct {
	delay time.Duration
	fire  func()
	log   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	stopped bool
	detach  func()
}

// NewWatcher returns a watcher calling fire once a burst of relevant
// mutations has settled for delay.
func NewWatcher(delay time.Duration, fire func(), log *slog.Logger) *Watcher {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{delay: delay, fire: fire, log: log}
}

// Start subscribes to the structural changes of obs.
func (w *Watcher) Start(ctx context.Context, obs dom.Observer) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return errors.New("watcher is stopped")
	}
	if w.detach != nil {
		w.mu.Unlock()
		return errors.New("watcher already started")
	}
	w.mu.Unlock()

	detach, err := obs.Observe(ctx, w.Handle)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		detach()
		return errors.New("watcher is stopped")
	}
	w.detach = detach
	return nil
}

// Handle processes one mutation batch.
func (w *Watcher) Handle(m dom.Mutation) {
	relevant := m.Relevant()
	metrics.MutationBatches.WithLabelValues(strconv.FormatBool(relevant)).Inc()
	if !relevant {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	w.gen++
	gen := w.gen
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pending = true
	w.timer = time.AfterFunc(w.delay, func() { w.expire(gen) })
	w.log.Debug("Relevant mutation, re-scan scheduled", "added", len(m.Added), "delay", w.delay)
}

func (w *Watcher) expire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || w.stopped {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.timer = nil
	w.mu.Unlock()

	metrics.DebouncedScans.Inc()
	w.fire()
}

// Cancel drops the pending re-scan, if any.
func (w *Watcher) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLocked()
}

func (w *Watcher) cancelLocked() {
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = false
}

// Pending reports whether a re-scan is scheduled.
func (w *Watcher) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// Stop cancels the pending re-scan and disconnects from the page. A stopped
// watcher ignores further batches.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.cancelLocked()
	w.stopped = true
	detach := w.detach
	w.detach = nil
	w.mu.Unlock()

	if detach != nil {
		detach()
	}
}
