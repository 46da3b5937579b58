package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestCustomHandler(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		name     string
		log      func(l *slog.Logger)
		expected []string
		absent   []string
	}{
		{
			name:     "plain message",
			log:      func(l *slog.Logger) { l.Info("scan finished", "records", 3) },
			expected: []string{"INFO ", "> scan finished", " records=3"},
		},
		{
			name:     "bound attributes",
			log:      func(l *slog.Logger) { l.With("session", "abc").Warn("snapshot failed") },
			expected: []string{"WARN ", "> snapshot failed", " session=abc"},
		},
		{
			name:     "grouped attributes",
			log:      func(l *slog.Logger) { l.WithGroup("scan").Info("done", "reason", "refresh") },
			expected: []string{" scan.reason=refresh"},
		},
		{
			name:   "below level",
			log:    func(l *slog.Logger) { l.Debug("hidden") },
			absent: []string{"hidden"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := slog.New(NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelInfo}))
			tt.log(l)

			got := buf.String()
			for _, want := range tt.expected {
				if !strings.Contains(got, want) {
					t.Errorf("\nExpected to contain: %q\nGot: %q", want, got)
				}
			}
			for _, unwanted := range tt.absent {
				if strings.Contains(got, unwanted) {
					t.Errorf("\nExpected not to contain: %q\nGot: %q", unwanted, got)
				}
			}
		})
	}
}
