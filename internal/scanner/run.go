package scanner

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bugmaschine/vidsniff/internal/dom"
	"github.com/bugmaschine/vidsniff/internal/metrics"
	"github.com/bugmaschine/vidsniff/pkg/logger"
	"github.com/hashicorp/go-multierror"
)

// Result is what one scanner contributed to a run.
type Result struct {
	Name       string
	Candidates []Candidate
	Err        error
	Elapsed    time.Duration
}

// Report is the outcome of running a list of scanners over one document.
type Report struct {
	Results []Result
	// Err collects the failures of individual scanners. A failed scanner
	// contributes no candidates; the others are unaffected.
	Err error
}

// Candidates concatenates the candidates of every scanner in run order.
func (r Report) Candidates() []Candidate {
	var n int
	for _, res := range r.Results {
		n += len(res.Candidates)
	}
	out := make([]Candidate, 0, n)
	for _, res := range r.Results {
		out = append(out, res.Candidates...)
	}
	return out
}

// Failed returns the names of scanners that failed.
func (r Report) Failed() []string {
	var names []string
	for _, res := range r.Results {
		if res.Err != nil {
			names = append(names, res.Name)
		}
	}
	return names
}

// Run runs scanners over doc in order. A scanner that returns an error or
// panics is recorded in the report and yields zero candidates.
func Run(doc *dom.Document, scanners []Scanner) Report {
	var report Report
	for _, s := range scanners {
		start := time.Now()
		cands, err := scanOne(s, doc)
		res := Result{Name: s.Name(), Elapsed: time.Since(start)}

		if err != nil {
			slog.Warn("Scanner failed, continuing without it", "scanner", s.Name(), "err", err)
			metrics.ScannerFailures.WithLabelValues(s.Name()).Inc()
			res.Err = err
			report.Err = multierror.Append(report.Err, multierror.Prefix(err, fmt.Sprintf("[%v]", s.Name())))
		} else {
			logger.Trace("Scanner finished", "scanner", s.Name(), "candidates", len(cands), "elapsed", res.Elapsed)
			metrics.ScannerCandidates.WithLabelValues(s.Name()).Add(float64(len(cands)))
			res.Candidates = cands
		}

		report.Results = append(report.Results, res)
	}
	return report
}

func scanOne(s Scanner, doc *dom.Document) (cands []Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			cands = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Scan(doc)
}
