package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bugmaschine/vidsniff/internal/classify"
	"github.com/bugmaschine/vidsniff/internal/dom"
)

var cssURLRe = regexp.MustCompile(`url\(["']?([^"')]+)["']?\)`)

// Background reports elements whose background image points at something
// that looks like video. A style that cannot be computed fails the pass.
type Background struct {
	MaxElements int
}

func (Background) Name() string { return "background" }

func (b Background) Scan(doc *dom.Document) ([]Candidate, error) {
	elements := doc.Elements()
	if b.MaxElements > 0 && len(elements) > b.MaxElements {
		elements = elements[:b.MaxElements]
	}

	var out []Candidate
	for _, el := range elements {
		bg, err := doc.BackgroundImage(el)
		if err != nil {
			return nil, fmt.Errorf("background of %s: %w", el.Ref(), err)
		}
		if !strings.Contains(bg, "url(") {
			continue
		}
		m := cssURLRe.FindStringSubmatch(bg)
		if m == nil {
			continue
		}
		u := doc.Resolve(m[1])
		if classify.LooksLikeVideo(u) {
			out = append(out, Candidate{Element: el, URL: u, Kind: KindBackground})
		}
	}
	return out, nil
}
