// Package dom is the read-only document model the scanners work on.
//
// A Document is one snapshot of a page: a goquery tree, the serialized markup
// it came from, and, for snapshots taken from a running browser, the live
// element properties markup cannot carry (intrinsic video size, duration,
// computed background image). Snapshots are immutable; a mutating page is
// observed by taking a new one.
package dom

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

type Document struct {
	doc    *goquery.Document
	markup string
	title  string
	base   *url.URL

	// live is nil for documents parsed from markup.
	live map[*html.Node]*liveProps

	elementsOnce sync.Once
	elements     []Element
}

// Parse builds a Document from serialized markup. pageURL, when set, is used
// to resolve relative locators (a <base href> in the markup takes precedence).
func Parse(markup string, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	d := &Document{
		doc:    doc,
		markup: markup,
		title:  documentTitle(doc),
	}

	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			d.base = u
		}
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(strings.TrimSpace(href)); err == nil {
			if d.base != nil {
				b = d.base.ResolveReference(b)
			}
			d.base = b
		}
	}

	return d, nil
}

func documentTitle(doc *goquery.Document) string {
	sel := doc.Find("head > title").First()
	if sel.Length() == 0 {
		sel = doc.Find("title").First()
	}
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// Title is the document title with whitespace collapsed.
func (d *Document) Title() string { return d.title }

// Markup is the serialized form of the document the snapshot was taken from.
func (d *Document) Markup() string { return d.markup }

// URL is the base locators are resolved against, empty when unknown.
func (d *Document) URL() string {
	if d.base == nil {
		return ""
	}
	return d.base.String()
}

// IsLive reports whether the snapshot carries browser-computed properties.
func (d *Document) IsLive() bool { return d.live != nil }

// Resolve turns a locator found in the document into an absolute URL when a
// base is known. Locators that do not parse are returned unchanged.
func (d *Document) Resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || d.base == nil {
		return raw
	}
	u, err := d.base.Parse(raw)
	if err != nil {
		return raw
	}
	return u.String()
}

// Elements returns every element of the document in document order.
func (d *Document) Elements() []Element {
	d.elementsOnce.Do(func() {
		d.doc.Find("*").Each(func(_ int, s *goquery.Selection) {
			d.elements = append(d.elements, d.Wrap(s))
		})
	})
	return d.elements
}

// Body returns the <body> element, or the root element for fragments that
// have none.
func (d *Document) Body() Element {
	body := d.doc.Find("body").First()
	if body.Length() == 0 {
		body = d.doc.Children().First()
	}
	return d.Wrap(body)
}

// Find wraps every element matching selector.
func (d *Document) Find(selector string) []Element {
	var out []Element
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, d.Wrap(s))
	})
	return out
}

func (d *Document) root() *html.Node {
	return d.doc.Get(0)
}

// locator returns the resource locator of n: the browser-resolved value for
// live snapshots, otherwise attr resolved against the document base.
func (d *Document) locator(n *html.Node, attr string) string {
	if p := d.live[n]; p != nil && p.src != "" {
		return p.src
	}
	for _, a := range n.Attr {
		if a.Key == attr {
			return d.Resolve(a.Val)
		}
	}
	return ""
}
