package chrome

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

var chromiumBinaries = []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"}

type Options struct {
	// ExecPath overrides the browser lookup.
	ExecPath  string
	Headless  bool
	Debug     bool
	UserAgent string
}

type Manager struct {
	opts Options
}

func NewManager(opts Options) *Manager {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Manager{opts: opts}
}

// Get starts a browser with anti-automation patches and returns its context.
// The cancel func shuts the browser down.
func (m *Manager) Get(ctx context.Context) (context.Context, context.CancelFunc, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.DisableGPU, // Safer across platforms
	}

	execPath, err := findChromium(m.opts.ExecPath)
	if err != nil {
		return nil, nil, err
	}
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	if m.opts.Headless && !m.opts.Debug {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}

	opts = append(opts,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(m.opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("exclude-switches", "enable-automation,enable-logging"),
		// Lets media elements load metadata without a user gesture.
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	var contextOpts []chromedp.ContextOption
	if m.opts.Debug {
		contextOpts = append(contextOpts,
			chromedp.WithLogf(func(s string, i ...interface{}) { slog.Debug(fmt.Sprintf(s, i...)) }),
		)
	}

	taskCtx, taskCancel := chromedp.NewContext(allocCtx, contextOpts...)

	combinedCancel := func() {
		taskCancel()
		allocCancel()
	}

	err = chromedp.Run(taskCtx, antiAutomation())
	if err != nil {
		combinedCancel()
		return nil, nil, fmt.Errorf("browser failed to start or patches failed: %w", err)
	}

	return taskCtx, combinedCancel, nil
}

func antiAutomation() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		script := `
			Object.defineProperty(window, "navigator", {
				value: new Proxy(navigator, {
					has: (target, key) => (key === "webdriver" ? false : key in target),
					get: (target, key) =>
					key === "webdriver"
						? false
						: typeof target[key] === "function"
						? target[key].bind(target)
						: target[key],
				}),
			});
		`
		_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
		return err
	})
}

// findChromium returns the explicit path when it exists, otherwise the first
// system browser on PATH. An empty result leaves the lookup to chromedp.
func findChromium(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("browser %s: %w", explicit, err)
		}
		return explicit, nil
	}

	for _, bin := range chromiumBinaries {
		if path, err := exec.LookPath(bin); err == nil {
			slog.Debug("Using system chromium", "path", path)
			return path, nil
		}
	}
	return "", nil
}

// GetUserAgent returns the user agent string of the current browser.
func GetUserAgent(ctx context.Context) (string, error) {
	var ua string
	err := chromedp.Run(ctx,
		chromedp.Evaluate("navigator.userAgent", &ua),
	)
	return ua, err
}
