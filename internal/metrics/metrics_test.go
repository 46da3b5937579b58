package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"ScansTotal", ScansTotal},
		{"ScanDuration", ScanDuration},
		{"SnapshotFailures", SnapshotFailures},
		{"ScanInProgress", ScanInProgress},
		{"VideosCurrent", VideosCurrent},
		{"ScannerCandidates", ScannerCandidates},
		{"ScannerFailures", ScannerFailures},
		{"DuplicatesDropped", DuplicatesDropped},
		{"MutationBatches", MutationBatches},
		{"DebouncedScans", DebouncedScans},
		{"DownloadsTotal", DownloadsTotal},
		{"DownloadBytes", DownloadBytes},
		{"DownloadsActive", DownloadsActive},
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestScannerCandidatesLabels(t *testing.T) {
	before := testutil.ToFloat64(ScannerCandidates.WithLabelValues("metrics-test"))
	ScannerCandidates.WithLabelValues("metrics-test").Add(3)
	after := testutil.ToFloat64(ScannerCandidates.WithLabelValues("metrics-test"))
	if after-before != 3 {
		t.Errorf("\nExpected: 3\nGot:      %v", after-before)
	}
}
