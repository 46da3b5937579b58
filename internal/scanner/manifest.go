package scanner

import (
	"regexp"

	"github.com/bugmaschine/vidsniff/internal/dom"
	"golang.org/x/net/html"
)

var (
	hlsRe  = regexp.MustCompile(`https?://[^\s"'<>]+\.m3u8[^\s"'<>]*`)
	dashRe = regexp.MustCompile(`https?://[^\s"'<>]+\.mpd[^\s"'<>]*`)
)

// Manifest reports every absolute URL of a streaming manifest found in the
// serialized markup, anchored to the document body.
type Manifest struct {
	name string
	kind Kind
	re   *regexp.Regexp
}

// HLS finds .m3u8 playlists.
func HLS() Manifest {
	return Manifest{
		name: "hls",
		kind: KindHLS,
		re:   hlsRe,
	}
}

// DASH finds .mpd descriptions.
func DASH() Manifest {
	return Manifest{
		name: "dash",
		kind: KindDASH,
		re:   dashRe,
	}
}

func (m Manifest) Name() string { return m.name }

func (m Manifest) Scan(doc *dom.Document) ([]Candidate, error) {
	matches := m.re.FindAllString(doc.Markup(), -1)
	if len(matches) == 0 {
		return nil, nil
	}
	body := doc.Body()
	out := make([]Candidate, 0, len(matches))
	for _, u := range matches {
		// Serialized attributes carry &amp; where the element has &.
		out = append(out, Candidate{Element: body, URL: html.UnescapeString(u), Kind: m.kind})
	}
	return out, nil
}
