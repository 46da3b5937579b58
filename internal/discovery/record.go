package discovery

import (
	"github.com/bugmaschine/vidsniff/internal/dom"
	"github.com/bugmaschine/vidsniff/internal/scanner"
	"github.com/samber/lo"
)

// Record is one detected video of the current result set.
type Record struct {
	// ID is unique within a session and never reused until the session is
	// refreshed.
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
	Quality  string `json:"quality"`
	Format   string `json:"format"`
	// EstimatedSizeBytes is a rough guess, nil when none can be made.
	EstimatedSizeBytes *int64       `json:"estimatedSizeBytes"`
	SourceKind         scanner.Kind `json:"sourceKind"`

	// ElementRef points back at the element the record was derived from. It
	// stays inside the process and may no longer resolve once the page changed.
	ElementRef dom.Ref `json:"-"`
}

// Transfer is the form a record takes when it leaves the process.
type Transfer struct {
	ID                 int64  `json:"id"`
	URL                string `json:"url"`
	Title              string `json:"title"`
	Format             string `json:"format"`
	Quality            string `json:"quality"`
	Duration           string `json:"duration"`
	EstimatedSizeBytes *int64 `json:"estimatedSizeBytes"`
}

func (r Record) Transfer() Transfer {
	return Transfer{
		ID:                 r.ID,
		URL:                r.URL,
		Title:              r.Title,
		Format:             r.Format,
		Quality:            r.Quality,
		Duration:           r.Duration,
		EstimatedSizeBytes: r.EstimatedSizeBytes,
	}
}

// Transfers converts a result set for use outside the process.
func Transfers(records []Record) []Transfer {
	return lo.Map(records, func(r Record, _ int) Transfer { return r.Transfer() })
}
