package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bugmaschine/vidsniff/internal/classify"
	"github.com/bugmaschine/vidsniff/internal/discovery"
)

var ErrInvalidURL = errors.New("invalid video URL")

const (
	filenameLimit    = 50
	filenameMinimum  = 3
	uniquifyAttempts = 1000
)

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun        = regexp.MustCompile(`\s+`)
	underscoreRun        = regexp.MustCompile(`_{2,}`)
)

// now is replaced in tests.
var now = time.Now

// Validate rejects records that cannot be handed to a downloader.
func Validate(t discovery.Transfer) error {
	if t.URL == "" || !classify.IsValidDownloadable(t.URL) {
		return fmt.Errorf("%w: %q", ErrInvalidURL, t.URL)
	}
	return nil
}

// SafeFilename turns a record title and format into a file name that is valid
// on every common file system.
func SafeFilename(title, format string) string {
	name := invalidFilenameChars.ReplaceAllString(title, "")
	name = whitespaceRun.ReplaceAllString(name, "_")
	name = underscoreRun.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)

	if utf8.RuneCountInString(name) > filenameLimit {
		name = string([]rune(name)[:filenameLimit])
	}
	if utf8.RuneCountInString(name) < filenameMinimum {
		name = fmt.Sprintf("video_%d", now().UnixMilli())
	}

	return name + "." + Extension(format)
}

// Extension is the file extension a download of format ends up with. HLS
// streams are remuxed into mp4; DASH downloads keep the manifest.
func Extension(format string) string {
	switch format {
	case "":
		return classify.FormatMP4
	case classify.FormatHLS:
		return "mp4"
	case classify.FormatDASH:
		return "mpd"
	}
	return strings.ToLower(format)
}

// Uniquify returns path, or path with " (n)" before the extension when path
// already exists.
func Uniquify(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path, nil
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; i <= uniquifyAttempts; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free file name for %s", path)
}
