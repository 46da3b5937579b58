package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bugmaschine/vidsniff/internal/api"
	"github.com/bugmaschine/vidsniff/internal/config"
	"github.com/bugmaschine/vidsniff/internal/discovery"
	"github.com/bugmaschine/vidsniff/internal/dom"
	"github.com/bugmaschine/vidsniff/internal/scanner"
	"github.com/bugmaschine/vidsniff/pkg/chrome"
	"github.com/bugmaschine/vidsniff/pkg/cli"
	"github.com/bugmaschine/vidsniff/pkg/dirs"
	"github.com/bugmaschine/vidsniff/pkg/download"
	"github.com/bugmaschine/vidsniff/pkg/ffmpeg"
	"github.com/bugmaschine/vidsniff/pkg/logger"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

func main() {
	args := &cli.Args{}
	rootCmd := cli.NewRootCommand(args)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// help and completion don't select a command
	if args.Command == "" {
		return
	}

	v, err := config.New(afero.NewOsFs(), args.ConfigFile, dirs.ConfigSearchPaths()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cli.BindFlags(args.Flags, v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Set up logger
	if args.Trace {
		logger.InitLogger(logger.LevelTrace, cfg.Log.File)
	} else {
		logger.InitDefaultLogger(cfg.Log.Debug, cfg.Log.File)
	}

	slog.Info("vidsniff started", "command", args.Command, "url", args.Url)
	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("Loaded config file", "path", used)
	}

	// Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args.Command {
	case cli.CommandScan:
		err = handleScan(ctx, args, cfg)
	case cli.CommandWatch:
		err = handleWatch(ctx, args, cfg)
	case cli.CommandServe:
		err = handleServe(ctx, args, cfg)
	case cli.CommandDownload:
		err = handleDownload(ctx, args, cfg)
	}

	if err != nil {
		slog.Error("Failed", "command", args.Command, "error", err)
		stop()
		os.Exit(1)
	}
}

func userAgent(cfg config.Config) string {
	if cfg.Browser.UserAgent != "" {
		return cfg.Browser.UserAgent
	}
	return chrome.DefaultUserAgent
}

// openSource returns the page to scan: a browser tab, or the raw markup when
// static is set. close releases the browser.
func openSource(ctx context.Context, url string, cfg config.Config, static bool) (dom.Source, func(), error) {
	if static {
		slog.Debug("Fetching page without a browser", "url", url)
		return dom.HTTPSource{URL: url, UserAgent: userAgent(cfg)}, func() {}, nil
	}

	chromeMgr := chrome.NewManager(chrome.Options{
		ExecPath:  cfg.Browser.Path,
		Headless:  cfg.Browser.Headless,
		Debug:     cfg.Log.Debug,
		UserAgent: cfg.Browser.UserAgent,
	})

	browserCtx, cancel, err := chromeMgr.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}

	slog.Info("Loading page...", "url", url)
	page, err := chrome.Open(browserCtx, url, chrome.PageOptions{
		Timeout:               cfg.Browser.Timeout,
		MaxBackgroundElements: cfg.Discovery.BackgroundCap,
	})
	if err != nil {
		cancel()
		return nil, nil, err
	}

	return page, func() {
		page.Close()
		cancel()
	}, nil
}

func newSession(source dom.Source, cfg config.Config, opts ...discovery.Option) (*discovery.Session, error) {
	all := scanner.Default(scanner.Options{MaxBackgroundElements: cfg.Discovery.BackgroundCap})
	selected := scanner.Select(all, cfg.Discovery.Scanners)
	if len(selected) == 0 {
		return nil, fmt.Errorf("no known scanner in %v, choose from %v", cfg.Discovery.Scanners, scanner.Names(all))
	}
	slog.Debug("Using scanners", "scanners", scanner.Names(selected))

	opts = append([]discovery.Option{
		discovery.WithScanners(selected...),
		discovery.WithDebounce(cfg.Discovery.Debounce),
	}, opts...)
	return discovery.NewSession(source, opts...), nil
}

func newDownloadManager(cfg config.Config, referer string) (*download.Manager, error) {
	rateLimit, err := cli.ParseRateLimit(cfg.Download.Rate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate limit: %w", err)
	}

	d := download.NewDownloader(download.Options{
		UserAgent: userAgent(cfg),
		Debug:     cfg.Log.Debug,
		RateLimit: rateLimit,
	})

	dataDir, err := dirs.GetDataDir()
	if err != nil {
		slog.Warn("No data directory", "error", err)
	}
	ffmpegPath, err := ffmpeg.Locate(cfg.Download.Ffmpeg, dataDir)
	if err != nil {
		slog.Warn("FFmpeg not available, HLS streams will be saved as .ts files", "error", err)
	} else {
		slog.Debug("Using FFmpeg", "path", ffmpegPath)
		d.SetFfmpegPath(ffmpegPath)
	}

	saveDir, err := dirs.GetSaveDirectory(cfg.Download.Output)
	if err != nil {
		return nil, err
	}

	tracker := download.NewTracker(func(s download.Status) {
		slog.Debug("Download state", "id", s.VideoID, "download", s.ID, "state", s.State, "progress", s.Progress)
	})

	return download.NewManager(d, tracker, download.ManagerOptions{
		Concurrent:   cfg.Download.Concurrent,
		Dir:          saveDir,
		SkipExisting: cfg.Download.SkipExisting,
		Retries:      cfg.Download.Retries,
		Referer:      referer,
	}), nil
}

func logReport(report discovery.Report) {
	if report.Err != nil {
		slog.Warn("Scan finished with errors", "videos", report.Videos, "error", report.Err)
	}
}

func handleScan(ctx context.Context, args *cli.Args, cfg config.Config) error {
	source, closeSource, err := openSource(ctx, args.Url, cfg, args.Static)
	if err != nil {
		return err
	}
	defer closeSource()

	session, err := newSession(source, cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	report := session.StartDetection(ctx)
	logReport(report)
	cli.PrintVideos(os.Stdout, session.Videos())
	return nil
}

func handleWatch(ctx context.Context, args *cli.Args, cfg config.Config) error {
	source, closeSource, err := openSource(ctx, args.Url, cfg, false)
	if err != nil {
		return err
	}
	defer closeSource()

	session, err := newSession(source, cfg, discovery.WithOnUpdate(func(records []discovery.Record) {
		fmt.Fprintf(os.Stdout, "\n%s\n", time.Now().Format(time.TimeOnly))
		cli.PrintVideos(os.Stdout, records)
	}))
	if err != nil {
		return err
	}
	defer session.Close()

	logReport(session.StartDetection(ctx))
	slog.Info("Watching page, press Ctrl+C to stop")

	<-ctx.Done()
	return nil
}

func handleServe(ctx context.Context, args *cli.Args, cfg config.Config) error {
	source, closeSource, err := openSource(ctx, args.Url, cfg, false)
	if err != nil {
		return err
	}
	defer closeSource()

	session, err := newSession(source, cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	manager, err := newDownloadManager(cfg, args.Url)
	if err != nil {
		return err
	}

	logReport(session.StartDetection(ctx))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.New(session, manager).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := manager.Run(gctx); err != nil {
			slog.Warn("Some downloads failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("Serving API", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		manager.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func handleDownload(ctx context.Context, args *cli.Args, cfg config.Config) error {
	selection, err := cli.ParseVideoSelection(args.Videos)
	if err != nil {
		return fmt.Errorf("invalid video selection: %w", err)
	}

	source, closeSource, err := openSource(ctx, args.Url, cfg, args.Static)
	if err != nil {
		return err
	}
	defer closeSource()

	session, err := newSession(source, cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	logReport(session.StartDetection(ctx))
	records := session.Videos()
	cli.PrintVideos(os.Stdout, records)

	if !selection.All() {
		records = lo.Filter(records, func(r discovery.Record, _ int) bool { return selection.Contains(r.ID) })
		if len(records) == 0 {
			slog.Warn("No video matches the selection", "videos", selection.String())
		} else {
			slog.Debug("Selected videos", "ids", lo.Map(records, func(r discovery.Record, _ int) int64 { return r.ID }))
		}
	}
	if len(records) == 0 {
		slog.Info("Nothing to download")
		return nil
	}

	manager, err := newDownloadManager(cfg, args.Url)
	if err != nil {
		return err
	}
	for _, t := range discovery.Transfers(records) {
		if _, err := manager.Submit(t); err != nil {
			slog.Warn("Skipping video", "id", t.ID, "error", err)
		}
	}
	manager.Close()

	slog.Info("Starting downloads...", "count", len(records))
	runErr := manager.Run(ctx)
	cli.PrintDownloads(os.Stdout, manager.Tracker().All())
	return runErr
}
