// Package metadata derives the human-facing fields of a detected video from
// the element it was found on. Nothing here loads media: durations and sizes
// are whatever the element already knows, and the byte size is an estimate
// from assumed bitrates that can be off by an order of magnitude.
package metadata

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/bugmaschine/vidsniff/internal/dom"
)

// Unknown is the duration reported when an element does not know it.
const Unknown = "Unknown"

const (
	Quality4K    = "4K"
	Quality1440p = "1440p"
	Quality1080p = "1080p"
	Quality720p  = "720p"
	Quality480p  = "480p"
	QualityAuto  = "Auto"
)

// MaxTitleLength is the number of runes a title keeps before it is cut and
// marked with an ellipsis.
const MaxTitleLength = 50

const ellipsis = "..."

// defaultDuration is assumed for size estimates when the duration is unknown.
const defaultDuration = 60.0

// bitrates are assumed bits per second per quality tier.
var bitrates = map[string]int64{
	Quality4K:    25_000_000,
	Quality1440p: 16_000_000,
	Quality1080p: 8_000_000,
	Quality720p:  5_000_000,
	Quality480p:  2_500_000,
	QualityAuto:  5_000_000,
}

const (
	sectionSelector = "figure, div, section"
	headingSelector = `h1, h2, h3, h4, h5, h6, .title, [class*="title"]`
)

type Metadata struct {
	Title    string
	Duration string
	Quality  string
	// EstimatedSizeBytes is nil when no estimate can be made. It is a rough
	// guess from the quality tier and duration, never a measured size.
	EstimatedSizeBytes *int64
}

// Synthesize derives the metadata of the video at resourceURL found on el.
func Synthesize(doc *dom.Document, el dom.Element, resourceURL string) Metadata {
	return Metadata{
		Title:              Title(doc, el, resourceURL),
		Duration:           Duration(el),
		Quality:            Quality(el),
		EstimatedSizeBytes: EstimateSize(el),
	}
}

// Title picks the first non-empty of: the element's title, alt or data-title
// attribute; the first heading inside the closest figure, div or section;
// the document title; the last path segment of resourceURL.
func Title(doc *dom.Document, el dom.Element, resourceURL string) string {
	title := attributeTitle(el)
	if title == "" {
		title = nearbyHeading(el)
	}
	if title == "" && doc != nil {
		title = doc.Title()
	}
	if title == "" {
		title = lastSegment(resourceURL)
	}
	return truncate(title, MaxTitleLength)
}

func attributeTitle(el dom.Element) string {
	if el == nil {
		return ""
	}
	for _, name := range []string{"title", "alt", "data-title"} {
		if v := strings.TrimSpace(el.Attr(name)); v != "" {
			return v
		}
	}
	return ""
}

func nearbyHeading(el dom.Element) string {
	if el == nil {
		return ""
	}
	parent := el.Selection().Closest(sectionSelector)
	if parent.Length() == 0 {
		return ""
	}
	heading := parent.Find(headingSelector).First()
	if heading.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(heading.Text())
}

func lastSegment(rawURL string) string {
	seg := rawURL
	if i := strings.LastIndexByte(seg, '/'); i >= 0 {
		seg = seg[i+1:]
	}
	seg, _, _ = strings.Cut(seg, "?")
	return seg
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + ellipsis
}

// Duration formats the element's playback duration as M:SS, or returns
// Unknown when the element is not timed or its duration is not a finite
// positive number.
func Duration(el dom.Element) string {
	secs, ok := knownDuration(el)
	if !ok {
		return Unknown
	}
	return FormatDuration(secs)
}

func knownDuration(el dom.Element) (float64, bool) {
	t, ok := el.(dom.Timed)
	if !ok {
		return 0, false
	}
	secs, ok := t.Duration()
	if !ok || math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		return 0, false
	}
	return secs, true
}

// FormatDuration renders seconds as minutes and zero-padded seconds.
func FormatDuration(seconds float64) string {
	total := int64(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Quality maps the element's pixel height onto a tier label. Heights below
// the lowest tier are reported as WxH; elements without both dimensions are
// Auto.
func Quality(el dom.Element) string {
	d, ok := el.(dom.Dimensioned)
	if !ok {
		return QualityAuto
	}
	w, h := d.IntrinsicSize()
	if w <= 0 || h <= 0 {
		return QualityAuto
	}
	switch {
	case h >= 2160:
		return Quality4K
	case h >= 1440:
		return Quality1440p
	case h >= 1080:
		return Quality1080p
	case h >= 720:
		return Quality720p
	case h >= 480:
		return Quality480p
	}
	return fmt.Sprintf("%dx%d", w, h)
}

// EstimateSize guesses the byte size of a timed element's resource from the
// bitrate assumed for its quality tier. An unknown duration counts as one
// minute. Untimed elements get no estimate.
func EstimateSize(el dom.Element) *int64 {
	if _, ok := el.(dom.Timed); !ok {
		return nil
	}
	secs, ok := knownDuration(el)
	if !ok {
		secs = defaultDuration
	}
	bitrate, ok := bitrates[Quality(el)]
	if !ok {
		bitrate = bitrates[QualityAuto]
	}
	size := int64(math.Floor(float64(bitrate) * secs / 8))
	return &size
}
