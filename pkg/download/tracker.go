package download

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"
)

var ErrActive = errors.New("download already active")

type State string

const (
	StatePending     State = "pending"
	StateDownloading State = "downloading"
	StateComplete    State = "complete"
	StateFailed      State = "failed"
)

// Status is the lifecycle of one download. ID is assigned by the tracker,
// one per URL. VideoID is the record the download was last requested for;
// record ids restart on every refresh, so they do not identify a download.
type Status struct {
	ID       int64  `json:"id"`
	VideoID  int64  `json:"videoId"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	State    State  `json:"state"`
	// Progress is in whole percent, only known while the total size is.
	Progress      int       `json:"progress"`
	BytesReceived int64     `json:"bytesReceived"`
	TotalBytes    int64     `json:"totalBytes"`
	Path          string    `json:"path,omitempty"`
	Error         string    `json:"error,omitempty"`
	Skipped       bool      `json:"skipped,omitempty"`
	Updated       time.Time `json:"updated"`
}

func (s Status) Active() bool {
	return s.State == StatePending || s.State == StateDownloading
}

// Tracker records the state of every download. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	statuses map[int64]*Status
	byURL    map[string]int64
	nextID   int64
	onChange func(Status)
}

// NewTracker returns an empty tracker. onChange, when set, is called with
// every new state outside of the tracker's lock.
func NewTracker(onChange func(Status)) *Tracker {
	return &Tracker{
		statuses: make(map[int64]*Status),
		byURL:    make(map[string]int64),
		onChange: onChange,
	}
}

// Add registers a pending download of url for the record videoID and returns
// it with its download id. A URL can only have one active download at a time;
// downloading it again after it ended reuses its entry.
func (t *Tracker) Add(videoID int64, url, filename string) (Status, error) {
	t.mu.Lock()
	id, ok := t.byURL[url]
	if ok {
		if cur := t.statuses[id]; cur.Active() {
			t.mu.Unlock()
			return *cur, fmt.Errorf("%w: %s is %s as download %d", ErrActive, url, cur.State, id)
		}
	} else {
		t.nextID++
		id = t.nextID
		t.byURL[url] = id
	}
	s := &Status{ID: id, VideoID: videoID, URL: url, Filename: filename, State: StatePending, Updated: time.Now()}
	t.statuses[id] = s
	snapshot := *s
	t.mu.Unlock()

	t.notify(snapshot)
	return snapshot, nil
}

// Progress moves a download to downloading and records how far it got.
func (t *Tracker) Progress(id int64, received, total int64) {
	t.update(id, func(s *Status) bool {
		if !s.Active() {
			return false
		}
		prev := s.Progress
		wasPending := s.State == StatePending
		s.State = StateDownloading
		s.BytesReceived = received
		s.TotalBytes = total
		if total > 0 {
			s.Progress = min(100, int(math.Round(float64(received)/float64(total)*100)))
		}
		// Byte counts change constantly; only whole percent steps are news.
		return wasPending || s.Progress != prev
	})
}

// Complete marks a download as finished at path.
func (t *Tracker) Complete(id int64, path string, skipped bool) {
	t.update(id, func(s *Status) bool {
		s.State = StateComplete
		s.Progress = 100
		s.Path = path
		s.Skipped = skipped
		s.Error = ""
		return true
	})
}

func (t *Tracker) Fail(id int64, err error) {
	t.update(id, func(s *Status) bool {
		s.State = StateFailed
		if err != nil {
			s.Error = err.Error()
		}
		return true
	})
}

func (t *Tracker) Get(id int64) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.statuses[id]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

// All returns every known download ordered by download id.
func (t *Tracker) All() []Status {
	t.mu.Lock()
	out := make([]Status, 0, len(t.statuses))
	for _, s := range t.statuses {
		out = append(out, *s)
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b Status) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (t *Tracker) update(id int64, fn func(*Status) bool) {
	t.mu.Lock()
	s, ok := t.statuses[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	changed := fn(s)
	if changed {
		s.Updated = time.Now()
	}
	snapshot := *s
	t.mu.Unlock()

	if changed {
		t.notify(snapshot)
	}
}

func (t *Tracker) notify(s Status) {
	if t.onChange != nil {
		t.onChange(s)
	}
}
