// Package scanner holds the independent detection passes run over a document
// snapshot. Each pass only reports raw candidates; classification, metadata
// and deduplication happen afterwards.
package scanner

import (
	"strings"

	"github.com/bugmaschine/vidsniff/internal/dom"
	"github.com/samber/lo"
)

// Kind tags the pass a candidate came from.
type Kind string

const (
	KindElement      Kind = "element"
	KindNestedSource Kind = "nested-source"
	KindEmbed        Kind = "embed"
	KindBackground   Kind = "background"
	KindHLS          Kind = "hls-manifest"
	KindDASH         Kind = "dash-manifest"
)

// Candidate is an unvalidated detection. Element is the node metadata is
// derived from, which is not always the node the URL was read from.
type Candidate struct {
	Element dom.Element
	URL     string
	Kind    Kind
}

type Scanner interface {
	Name() string
	Scan(doc *dom.Document) ([]Candidate, error)
}

// DefaultMaxBackgroundElements bounds the background pass on large pages.
const DefaultMaxBackgroundElements = 5000

type Options struct {
	// MaxBackgroundElements caps how many elements, in document order, the
	// background pass inspects. Zero or less inspects all of them.
	MaxBackgroundElements int
}

// Default returns every scanner in the order their candidates take
// precedence during deduplication.
func Default(opts Options) []Scanner {
	return []Scanner{
		Native{},
		Embed{},
		Background{MaxElements: opts.MaxBackgroundElements},
		HLS(),
		DASH(),
	}
}

// Names lists the names of scanners.
func Names(scanners []Scanner) []string {
	return lo.Map(scanners, func(s Scanner, _ int) string { return s.Name() })
}

// Select keeps the scanners whose name is in names, preserving order. An
// empty names keeps all of them.
func Select(scanners []Scanner, names []string) []Scanner {
	if len(names) == 0 {
		return scanners
	}
	return lo.Filter(scanners, func(s Scanner, _ int) bool {
		return lo.ContainsBy(names, func(n string) bool { return strings.EqualFold(n, s.Name()) })
	})
}

func isBlob(u string) bool {
	return strings.HasPrefix(strings.ToLower(u), "blob:")
}
