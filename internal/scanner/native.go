package scanner

import "github.com/bugmaschine/vidsniff/internal/dom"

// playable is what the native pass looks for: an element with its own
// resource locator and a playback timeline.
type playable interface {
	dom.Locatable
	dom.Timed
}

// Native reports playable elements and the alternative sources nested in
// them. Element candidates all come before nested ones; a nested candidate is
// anchored to its playable element. Blob locators are skipped, they only
// exist inside the page.
type Native struct{}

func (Native) Name() string { return "native" }

func (Native) Scan(doc *dom.Document) ([]Candidate, error) {
	var elements, nested []Candidate
	for _, el := range doc.Elements() {
		p, ok := el.(playable)
		if !ok {
			continue
		}
		if u := p.ResourceURL(); u != "" && !isBlob(u) {
			elements = append(elements, Candidate{Element: el, URL: u, Kind: KindElement})
		}

		sn, ok := el.(dom.SourceNesting)
		if !ok {
			continue
		}
		for _, src := range sn.Sources() {
			if u := src.ResourceURL(); u != "" && !isBlob(u) {
				nested = append(nested, Candidate{Element: el, URL: u, Kind: KindNestedSource})
			}
		}
	}
	return append(elements, nested...), nil
}
