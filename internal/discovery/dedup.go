package discovery

import (
	"github.com/bugmaschine/vidsniff/internal/classify"
	"github.com/bugmaschine/vidsniff/internal/dom"
	"github.com/bugmaschine/vidsniff/internal/metadata"
	"github.com/bugmaschine/vidsniff/internal/metrics"
	"github.com/bugmaschine/vidsniff/internal/scanner"
)

// Counter hands out record ids. The zero value starts at 1.
type Counter struct {
	last int64
}

func (c *Counter) Next() int64 {
	c.last++
	return c.last
}

func (c *Counter) Reset() { c.last = 0 }

// Deduplicate keeps the first candidate of every URL, in order, and turns
// each survivor into a Record with the next id.
func Deduplicate(doc *dom.Document, cands []scanner.Candidate, ids *Counter) []Record {
	seen := make(map[string]struct{}, len(cands))
	out := make([]Record, 0, len(cands))
	for _, c := range cands {
		if _, ok := seen[c.URL]; ok {
			metrics.DuplicatesDropped.Inc()
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, newRecord(doc, c, ids.Next()))
	}
	return out
}

func newRecord(doc *dom.Document, c scanner.Candidate, id int64) Record {
	md := metadata.Synthesize(doc, c.Element, c.URL)
	rec := Record{
		ID:                 id,
		URL:                c.URL,
		Title:              md.Title,
		Duration:           md.Duration,
		Quality:            md.Quality,
		Format:             classify.Format(c.URL),
		EstimatedSizeBytes: md.EstimatedSizeBytes,
		SourceKind:         c.Kind,
	}
	if c.Element != nil {
		rec.ElementRef = c.Element.Ref()
	}
	return rec
}
