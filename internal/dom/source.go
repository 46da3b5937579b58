package dom

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Source produces snapshots of a page.
type Source interface {
	Snapshot(ctx context.Context) (*Document, error)
}

// Observer is a Source that can report structural changes of its page.
// fn is called for every batch of added nodes until stop is called or ctx
// ends. Batches are delivered in order and never concurrently.
type Observer interface {
	Source
	Observe(ctx context.Context, fn func(Mutation)) (stop func(), err error)
}

// StaticSource snapshots a fixed piece of markup.
type StaticSource struct {
	Markup string
	URL    string
}

func (s StaticSource) Snapshot(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Parse(s.Markup, s.URL)
}

// DefaultMaxPageSize caps how much markup HTTPSource reads.
const DefaultMaxPageSize = 32 << 20

// HTTPSource fetches the page on every snapshot. It sees the markup the
// server sends, not what scripts later build from it.
type HTTPSource struct {
	URL       string
	UserAgent string
	Referer   string
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// MaxBytes defaults to DefaultMaxPageSize. Larger pages fail the snapshot.
	MaxBytes int64
}

func (s HTTPSource) Snapshot(ctx context.Context) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.URL, nil)
	if err != nil {
		return nil, err
	}

	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	if s.Referer != "" {
		req.Header.Set("Referer", s.Referer)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch page: status %d", resp.StatusCode)
	}

	limit := s.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxPageSize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("page is larger than %d bytes", limit)
	}

	// Redirects change the base relative locators resolve against.
	return Parse(string(body), resp.Request.URL.String())
}
