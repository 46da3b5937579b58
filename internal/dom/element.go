package dom

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Element is a single element of a Document. What an element can tell about
// itself beyond tag and attributes is expressed by the capability interfaces
// below; callers check for them with a type assertion.
type Element interface {
	Tag() string
	Attr(name string) string
	Selection() *goquery.Selection
	Ref() Ref
	// ContainsMedia reports whether a playable or embedding element sits
	// anywhere below this one.
	ContainsMedia() bool
}

// Locatable elements point at a resource.
type Locatable interface {
	Element
	ResourceURL() string
}

// Dimensioned elements know their intrinsic pixel size. Zero means unknown.
type Dimensioned interface {
	Element
	IntrinsicSize() (width, height int)
}

// Timed elements may know the playback duration of their resource, in seconds.
type Timed interface {
	Element
	Duration() (seconds float64, ok bool)
}

// SourceNesting elements carry alternative <source> declarations.
type SourceNesting interface {
	Element
	Sources() []Locatable
}

// Embedding elements frame another document.
type Embedding interface {
	Element
	EmbedURL() string
}

const (
	tagVideo  = "video"
	tagSource = "source"
	tagIframe = "iframe"
)

// MediaHostSelector matches the elements a mutation must add for a re-scan
// to be worthwhile.
const MediaHostSelector = tagVideo + ", " + tagIframe

// IsMediaHostTag reports whether tag names a playable or embedding element.
func IsMediaHostTag(tag string) bool {
	return tag == tagVideo || tag == tagIframe
}

// Wrap returns the first node of sel as an Element with the capabilities its
// tag grants.
func (d *Document) Wrap(sel *goquery.Selection) Element {
	b := element{doc: d, sel: sel.First()}
	switch b.Tag() {
	case tagVideo:
		return playable{b}
	case tagSource:
		return sourceDecl{b}
	case tagIframe:
		return frame{b}
	}
	return b
}

type element struct {
	doc *Document
	sel *goquery.Selection
}

func (e element) Tag() string { return goquery.NodeName(e.sel) }

func (e element) Attr(name string) string { return e.sel.AttrOr(name, "") }

func (e element) Selection() *goquery.Selection { return e.sel }

func (e element) Ref() Ref { return refOf(e.node()) }

func (e element) ContainsMedia() bool {
	return e.sel.Find(MediaHostSelector).Length() > 0
}

func (e element) node() *html.Node { return e.sel.Get(0) }

func (e element) props() *liveProps { return e.doc.live[e.node()] }

func (e element) intAttr(name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(e.Attr(name)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// playable is a <video>.
type playable struct{ element }

func (p playable) ResourceURL() string { return p.doc.locator(p.node(), "src") }

func (p playable) IntrinsicSize() (int, int) {
	var w, h int
	if lp := p.props(); lp != nil {
		w, h = lp.videoWidth, lp.videoHeight
	}
	if w == 0 {
		w = p.intAttr("width")
	}
	if h == 0 {
		h = p.intAttr("height")
	}
	return w, h
}

func (p playable) Duration() (float64, bool) {
	if lp := p.props(); lp != nil && lp.hasDuration {
		return lp.duration, true
	}
	return 0, false
}

func (p playable) Sources() []Locatable {
	var out []Locatable
	p.sel.Find(tagSource).Each(func(_ int, s *goquery.Selection) {
		if l, ok := p.doc.Wrap(s).(Locatable); ok {
			out = append(out, l)
		}
	})
	return out
}

// sourceDecl is a <source>.
type sourceDecl struct{ element }

func (s sourceDecl) ResourceURL() string { return s.doc.locator(s.node(), "src") }

// frame is an <iframe>.
type frame struct{ element }

func (f frame) EmbedURL() string { return f.doc.locator(f.node(), "src") }
