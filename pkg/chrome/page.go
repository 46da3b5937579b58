package chrome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bugmaschine/vidsniff/internal/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const (
	mutationBinding  = "__vidsniffMutation"
	observerProperty = "__vidsniffObserver"

	DefaultTimeout = 45 * time.Second
)

var ErrPageClosed = errors.New("page is closed")

type PageOptions struct {
	// Timeout bounds navigation and every snapshot.
	Timeout time.Duration
	// MaxBackgroundElements caps how many elements get their computed
	// background image read per snapshot, 0 for all.
	MaxBackgroundElements int
}

// Page is a browser tab the discovery engine can snapshot and observe.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   PageOptions

	mu        sync.Mutex
	listening bool
	handler   func(dom.Mutation)
	closed    bool
}

// Open creates a new tab in the browser behind browserCtx and navigates it
// to url.
func Open(browserCtx context.Context, url string, opts PageOptions) (*Page, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	p := &Page{ctx: tabCtx, cancel: cancel, opts: opts}

	if err := p.Navigate(context.Background(), url); err != nil {
		cancel()
		return nil, err
	}
	return p, nil
}

// Navigate loads url and waits for its body.
func (p *Page) Navigate(ctx context.Context, url string) error {
	runCtx, done := p.runContext(ctx)
	defer done()

	slog.Debug("Navigating", "url", url)
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

// Snapshot serializes the live page, including media state and computed
// styles, into a Document.
func (p *Page) Snapshot(ctx context.Context) (*dom.Document, error) {
	if p.isClosed() {
		return nil, ErrPageClosed
	}

	runCtx, done := p.runContext(ctx)
	defer done()

	var raw string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(snapshotScript(p.opts.MaxBackgroundElements), &raw)); err != nil {
		return nil, err
	}
	return decodeSnapshot(raw)
}

// Observe reports every batch of added elements to fn until stop is called.
// Only one observer is active at a time; a new one replaces the old.
func (p *Page) Observe(ctx context.Context, fn func(dom.Mutation)) (func(), error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPageClosed
	}
	first := !p.listening
	p.listening = true
	p.mu.Unlock()

	runCtx, done := p.runContext(ctx)
	defer done()

	if first {
		chromedp.ListenTarget(p.ctx, p.onEvent)
		err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			return runtime.AddBinding(mutationBinding).Do(ctx)
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to add mutation binding: %w", err)
		}
	}

	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()

	if err := chromedp.Run(runCtx, chromedp.Evaluate(observerScript, nil)); err != nil {
		p.setHandler(nil)
		return nil, fmt.Errorf("failed to install mutation observer: %w", err)
	}

	stop := func() {
		p.setHandler(nil)
		if p.isClosed() {
			return
		}
		stopCtx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
		defer cancel()
		if err := chromedp.Run(stopCtx, chromedp.Evaluate(disconnectScript, nil)); err != nil {
			slog.Debug("Failed to disconnect mutation observer", "error", err)
		}
	}
	return stop, nil
}

// Close closes the tab.
func (p *Page) Close() {
	p.mu.Lock()
	p.closed = true
	p.handler = nil
	p.mu.Unlock()
	p.cancel()
}

func (p *Page) onEvent(ev interface{}) {
	e, ok := ev.(*runtime.EventBindingCalled)
	if !ok || e.Name != mutationBinding {
		return
	}

	m, err := decodeMutation(e.Payload)
	if err != nil {
		slog.Warn("Dropped malformed mutation batch", "error", err)
		return
	}

	p.mu.Lock()
	fn := p.handler
	p.mu.Unlock()
	if fn != nil {
		fn(m)
	}
}

func (p *Page) setHandler(fn func(dom.Mutation)) {
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
}

func (p *Page) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// runContext derives a context from the tab that also ends with ctx and
// after the page timeout.
func (p *Page) runContext(ctx context.Context) (context.Context, func()) {
	runCtx, cancel := context.WithTimeout(p.ctx, p.opts.Timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func decodeSnapshot(raw string) (*dom.Document, error) {
	var snap dom.LiveSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode page snapshot: %w", err)
	}
	return dom.FromLive(snap)
}

func decodeMutation(payload string) (dom.Mutation, error) {
	var added []dom.LiveAdded
	if err := json.Unmarshal([]byte(payload), &added); err != nil {
		return dom.Mutation{}, err
	}
	return dom.NewLiveMutation(added), nil
}
