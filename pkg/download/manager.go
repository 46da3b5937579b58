package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bugmaschine/vidsniff/internal/classify"
	"github.com/bugmaschine/vidsniff/internal/discovery"
	"github.com/bugmaschine/vidsniff/internal/metrics"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull     = errors.New("download queue is full")
	ErrManagerClosed = errors.New("download manager is closed")
)

const queueSize = 100

// retryDelay is multiplied by the attempt number between retries.
var retryDelay = 2 * time.Second

type ManagerOptions struct {
	Concurrent int
	Dir        string
	// SkipExisting leaves files that already exist alone instead of picking a
	// free name next to them.
	SkipExisting bool
	Retries      int
	// Referer is sent with every request, usually the page the videos were
	// found on.
	Referer string
}

type job struct {
	id       int64
	transfer discovery.Transfer
	path     string
}

// Manager runs submitted downloads on a bounded number of workers and
// reports their lifecycle into a Tracker.
type Manager struct {
	downloader *Downloader
	tracker    *Tracker
	opts       ManagerOptions
	jobs       chan job

	mu     sync.Mutex
	closed bool
}

func NewManager(d *Downloader, tracker *Tracker, opts ManagerOptions) *Manager {
	if opts.Concurrent <= 0 {
		opts.Concurrent = 1
	}
	if tracker == nil {
		tracker = NewTracker(nil)
	}
	return &Manager{
		downloader: d,
		tracker:    tracker,
		opts:       opts,
		jobs:       make(chan job, queueSize),
	}
}

func (m *Manager) Tracker() *Tracker {
	return m.tracker
}

// Submit validates t and queues it. The returned status is the pending entry
// in the tracker.
func (m *Manager) Submit(t discovery.Transfer) (Status, error) {
	if err := Validate(t); err != nil {
		metrics.DownloadsTotal.WithLabelValues("rejected").Inc()
		slog.Warn("Rejected download", "id", t.ID, "url", t.URL, "error", err)
		return Status{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Status{}, ErrManagerClosed
	}

	filename := SafeFilename(t.Title, t.Format)
	status, err := m.tracker.Add(t.ID, t.URL, filename)
	if err != nil {
		return status, err
	}

	select {
	case m.jobs <- job{id: status.ID, transfer: t, path: filepath.Join(m.opts.Dir, filename)}:
	default:
		m.tracker.Fail(status.ID, ErrQueueFull)
		return Status{}, ErrQueueFull
	}

	slog.Debug("Download queued", "id", t.ID, "download", status.ID, "file", filename)
	return status, nil
}

// Close stops accepting downloads. Run returns once the queued ones are done.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.jobs)
	}
}

// Run works the queue until Close is called or ctx is cancelled. A failed
// download does not stop the others; all failures are returned together.
// Cancelling ctx closes the manager and fails whatever is still queued.
func (m *Manager) Run(ctx context.Context) error {
	if m.opts.Dir != "" {
		if err := os.MkdirAll(m.opts.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create download directory: %w", err)
		}
	}

	var (
		g      errgroup.Group
		errMu  sync.Mutex
		result error
	)
	g.SetLimit(m.opts.Concurrent)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case j, ok := <-m.jobs:
			if !ok {
				break loop
			}
			g.Go(func() error {
				if err := m.download(ctx, j); err != nil {
					errMu.Lock()
					result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%d]", j.transfer.ID)))
					errMu.Unlock()
				}
				return nil
			})
		}
	}

	if err := ctx.Err(); err != nil {
		m.Close()
		for j := range m.jobs {
			m.tracker.Fail(j.id, err)
			metrics.DownloadsTotal.WithLabelValues("failed").Inc()
		}
	}

	_ = g.Wait()
	m.downloader.Wait()
	return result
}

func (m *Manager) download(ctx context.Context, j job) error {
	id := j.id

	metrics.DownloadsActive.Inc()
	defer metrics.DownloadsActive.Dec()

	path := j.path
	if _, err := os.Stat(path); err == nil {
		if m.opts.SkipExisting {
			slog.Info("Skipping download, file already exists", "file", path)
			m.tracker.Complete(id, path, true)
			metrics.DownloadsTotal.WithLabelValues("skipped").Inc()
			return nil
		}
		if path, err = Uniquify(path); err != nil {
			m.tracker.Fail(id, err)
			metrics.DownloadsTotal.WithLabelValues("failed").Inc()
			return err
		}
	}

	task := NewTask(path, j.transfer.URL).
		SetReferer(m.opts.Referer).
		SetForceHLS(j.transfer.Format == classify.FormatHLS).
		SetProgress(func(received, total int64) {
			m.tracker.Progress(id, received, total)
		})

	var (
		finalPath string
		err       error
	)
	for attempt := 0; attempt <= m.opts.Retries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying download", "file", task.Filename(), "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-time.After(time.Duration(attempt) * retryDelay):
			}
			if ctx.Err() != nil {
				break
			}
		}

		finalPath, err = m.downloader.DownloadToFile(ctx, task)
		if err == nil || ctx.Err() != nil {
			break
		}
	}

	if err != nil {
		slog.Warn("Failed download", "file", task.Filename(), "error", err)
		m.tracker.Fail(id, err)
		metrics.DownloadsTotal.WithLabelValues("failed").Inc()
		return err
	}

	if info, err := os.Stat(finalPath); err == nil {
		metrics.DownloadBytes.Add(float64(info.Size()))
	}
	slog.Debug("Download finished successfully", "file", finalPath)
	m.tracker.Complete(id, finalPath, false)
	metrics.DownloadsTotal.WithLabelValues("complete").Inc()
	return nil
}
