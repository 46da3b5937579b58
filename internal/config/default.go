package config

import "time"

// Configuration keys. Environment variables are the upper-cased key with
// dots replaced by underscores, prefixed with VIDSNIFF_.
const (
	KeyDebounce      = "discovery.debounce"
	KeyBackgroundCap = "discovery.background_cap"
	KeyScanners      = "discovery.scanners"

	KeyHeadless    = "browser.headless"
	KeyBrowserPath = "browser.path"
	KeyTimeout     = "browser.timeout"
	KeyUserAgent   = "browser.user_agent"

	KeyConcurrent   = "download.concurrent"
	KeyRateLimit    = "download.rate"
	KeyRetries      = "download.retries"
	KeyOutputDir    = "download.output"
	KeySkipExisting = "download.skip_existing"
	KeyFfmpegPath   = "download.ffmpeg"

	KeyAddr = "server.addr"

	KeyDebug   = "log.debug"
	KeyLogFile = "log.file"
)

// Field is a configuration key with its factory default.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Default lists every known key in display order.
var Default = []Field{
	{KeyDebounce, 500 * time.Millisecond, "Quiet period after a relevant page mutation before re-scanning"},
	{KeyBackgroundCap, 5000, "Maximum number of elements the background scan inspects, 0 for all"},
	{KeyScanners, []string{}, "Scanners to run, empty for all (native, embed, background, hls, dash)"},

	{KeyHeadless, true, "Run the browser without a window"},
	{KeyBrowserPath, "", "Path to a Chrome or Chromium binary, found automatically when empty"},
	{KeyTimeout, 45 * time.Second, "Timeout for page loads and snapshots"},
	{KeyUserAgent, "", "User agent for page and media requests, the browser's own when empty"},

	{KeyConcurrent, 3, "Concurrent downloads"},
	{KeyRateLimit, "inf", "Maximum download rate per download (e.g. 500k, 2M, inf)"},
	{KeyRetries, 3, "Retries per failed download"},
	{KeyOutputDir, "downloads", "Directory downloads are saved to"},
	{KeySkipExisting, false, "Skip downloads whose target file exists"},
	{KeyFfmpegPath, "", "Path to ffmpeg, looked up in PATH when empty"},

	{KeyAddr, ":8080", "Listen address of the HTTP API"},

	{KeyDebug, false, "Enable debug logging"},
	{KeyLogFile, "", "Append logs to this file as well"},
}
