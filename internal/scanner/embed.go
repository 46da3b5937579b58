package scanner

import (
	"github.com/bugmaschine/vidsniff/internal/classify"
	"github.com/bugmaschine/vidsniff/internal/dom"
)

// Embed reports frames showing a player of a known video platform.
type Embed struct{}

func (Embed) Name() string { return "embed" }

func (Embed) Scan(doc *dom.Document) ([]Candidate, error) {
	var out []Candidate
	for _, el := range doc.Elements() {
		e, ok := el.(dom.Embedding)
		if !ok {
			continue
		}
		if u := e.EmbedURL(); u != "" && classify.IsEmbedHost(u) {
			out = append(out, Candidate{Element: el, URL: u, Kind: KindEmbed})
		}
	}
	return out, nil
}
