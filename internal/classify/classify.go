// Package classify maps resource locators to a format tag and decides
// whether a locator looks like video at all. Every function is pure and
// total: malformed input degrades to the defaults instead of failing.
package classify

import (
	"net/url"
	"slices"
	"strings"
)

const (
	FormatMP4  = "mp4"
	FormatHLS  = "HLS"
	FormatDASH = "DASH"
)

// Containers are the file extensions returned verbatim as a format tag.
var Containers = []string{"mp4", "webm", "avi", "mov", "wmv", "flv", "mkv", "m4v"}

var videoExtensions = append(slices.Clone(Containers), "m3u8", "mpd")

var videoTokens = []string{"video", "stream", "media"}

// Format returns the format tag of rawURL: the container extension when the
// text after the last '.' (query and fragment stripped) is a known one, HLS
// or DASH when a manifest marker appears anywhere, otherwise mp4.
func Format(rawURL string) string {
	ext := rawURL
	if i := strings.LastIndexByte(ext, '.'); i >= 0 {
		ext = ext[i+1:]
	}
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	ext = strings.ToLower(ext)

	if slices.Contains(Containers, ext) {
		return ext
	}

	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, ".m3u8"):
		return FormatHLS
	case strings.Contains(lower, ".mpd"):
		return FormatDASH
	}
	return FormatMP4
}

// IsManifest reports whether format names an adaptive streaming playlist.
func IsManifest(format string) bool {
	return format == FormatHLS || format == FormatDASH
}

// LooksLikeVideo is a permissive check: any known extension (".ext" or
// "ext?") or one of the tokens video, stream, media.
func LooksLikeVideo(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, ext := range videoExtensions {
		if strings.Contains(lower, "."+ext) || strings.Contains(lower, ext+"?") {
			return true
		}
	}
	for _, tok := range videoTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// IsValidDownloadable is the stricter check applied before handing a locator
// to a downloader: it must parse with an http or https scheme and look like
// video.
func IsValidDownloadable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}
	if u.Host == "" {
		return false
	}
	return LooksLikeVideo(rawURL)
}
