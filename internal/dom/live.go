package dom

import (
	"errors"
	"math"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LiveSnapshot is the JSON shape a browser page serializes itself into.
type LiveSnapshot struct {
	URL    string    `json:"url"`
	Title  string    `json:"title"`
	Markup string    `json:"html"`
	Root   *LiveNode `json:"root"`
}

// LiveNode is an element (Tag set) or a text node (Tag empty).
type LiveNode struct {
	Tag      string            `json:"t,omitempty"`
	Text     string            `json:"x,omitempty"`
	Attrs    map[string]string `json:"a,omitempty"`
	Children []*LiveNode       `json:"c,omitempty"`

	// Src is the browser-resolved resource locator (the element's src property).
	Src        string     `json:"u,omitempty"`
	Media      *LiveMedia `json:"m,omitempty"`
	Background string     `json:"bg,omitempty"`
	StyleError string     `json:"se,omitempty"`
}

// LiveMedia holds the state of a loaded media element.
type LiveMedia struct {
	VideoWidth  int `json:"vw"`
	VideoHeight int `json:"vh"`
	// Duration is null while the metadata is not loaded or the duration is
	// not a finite number.
	Duration *float64 `json:"d"`
}

// LiveAdded is the browser's summary of an element a mutation added.
type LiveAdded struct {
	TagName  string `json:"t"`
	HasMedia bool   `json:"m"`
}

func (a LiveAdded) Tag() string         { return strings.ToLower(a.TagName) }
func (a LiveAdded) ContainsMedia() bool { return a.HasMedia }

// NewLiveMutation turns a browser mutation payload into a Mutation.
func NewLiveMutation(added []LiveAdded) Mutation {
	m := Mutation{Added: make([]Node, 0, len(added))}
	for _, a := range added {
		m.Added = append(m.Added, a)
	}
	return m
}

type liveProps struct {
	src         string
	videoWidth  int
	videoHeight int
	duration    float64
	hasDuration bool
	background  string
	styleError  string
}

// FromLive builds a Document from a browser snapshot.
func FromLive(s LiveSnapshot) (*Document, error) {
	if s.Root == nil || s.Root.Tag == "" {
		return nil, errors.New("live snapshot has no root element")
	}

	d := &Document{
		title: strings.Join(strings.Fields(s.Title), " "),
		live:  make(map[*html.Node]*liveProps),
	}

	docNode := &html.Node{Type: html.DocumentNode}
	docNode.AppendChild(d.buildLive(s.Root))
	d.doc = goquery.NewDocumentFromNode(docNode)

	d.markup = s.Markup
	if d.markup == "" {
		var sb strings.Builder
		if err := html.Render(&sb, docNode); err == nil {
			d.markup = sb.String()
		}
	}

	if s.URL != "" {
		if u, err := url.Parse(s.URL); err == nil {
			d.base = u
		}
	}
	return d, nil
}

func (d *Document) buildLive(ln *LiveNode) *html.Node {
	if ln.Tag == "" {
		return &html.Node{Type: html.TextNode, Data: ln.Text}
	}

	tag := strings.ToLower(ln.Tag)
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}

	keys := make([]string, 0, len(ln.Attrs))
	for k := range ln.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: ln.Attrs[k]})
	}

	if p := propsOf(ln); p != nil {
		d.live[n] = p
	}

	for _, c := range ln.Children {
		if c == nil {
			continue
		}
		n.AppendChild(d.buildLive(c))
	}
	return n
}

func propsOf(ln *LiveNode) *liveProps {
	if ln.Src == "" && ln.Media == nil && ln.Background == "" && ln.StyleError == "" {
		return nil
	}
	p := &liveProps{
		src:        ln.Src,
		background: ln.Background,
		styleError: ln.StyleError,
	}
	if m := ln.Media; m != nil {
		p.videoWidth = m.VideoWidth
		p.videoHeight = m.VideoHeight
		if m.Duration != nil && !math.IsNaN(*m.Duration) && !math.IsInf(*m.Duration, 0) {
			p.duration = *m.Duration
			p.hasDuration = true
		}
	}
	return p
}
