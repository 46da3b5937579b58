package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Ref is a non-owning back-reference to an element: the element's position
// among element children from the root down, plus its tag. It holds no
// pointer into any snapshot, so it never keeps a document alive, and it may
// fail to resolve once the page has changed.
type Ref struct {
	path []int
	tag  string
}

func refOf(n *html.Node) Ref {
	if n == nil || n.Type != html.ElementNode {
		return Ref{}
	}
	var path []int
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		idx := 0
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode {
				idx++
			}
		}
		path = append(path, idx)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return Ref{path: path, tag: n.Data}
}

// IsZero reports whether the ref points nowhere.
func (r Ref) IsZero() bool { return r.tag == "" }

// Tag is the tag the element had when the ref was taken.
func (r Ref) Tag() string { return r.tag }

// Resolve looks the element up again in doc. It fails when the position no
// longer exists or now holds a different kind of element.
func (r Ref) Resolve(doc *Document) (Element, bool) {
	if r.IsZero() || doc == nil {
		return nil, false
	}
	cur := doc.root()
	for _, idx := range r.path {
		cur = nthElementChild(cur, idx)
		if cur == nil {
			return nil, false
		}
	}
	if cur.Data != r.tag {
		return nil, false
	}
	return doc.Wrap(doc.doc.FindNodes(cur)), true
}

func (r Ref) String() string {
	if r.IsZero() {
		return "<none>"
	}
	parts := make([]string, len(r.path))
	for i, idx := range r.path {
		parts[i] = strconv.Itoa(idx)
	}
	return r.tag + "@" + strings.Join(parts, "/")
}

func nthElementChild(n *html.Node, idx int) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if idx == 0 {
			return c
		}
		idx--
	}
	return nil
}
