package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func ptr(v int64) *int64 { return &v }

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		input    *int64
		expected string
	}{
		{nil, "Unknown size"},
		{ptr(-1), "Unknown size"},
		{ptr(0), "0 B"},
		{ptr(1023), "1023 B"},
		{ptr(1024), "1.0 KB"},
		{ptr(1536), "1.5 KB"},
		{ptr(5 * 1024 * 1024), "5.0 MB"},
		{ptr(125_400_000), "119.6 MB"},
		{ptr(3 * 1024 * 1024 * 1024), "3.0 GB"},
		{ptr(5000 * 1024 * 1024 * 1024), "5000.0 GB"},
	}

	for _, tt := range tests {
		got := FormatFileSize(tt.input)
		if got != tt.expected {
			t.Errorf("\nInput:    %v\nExpected: %s\nGot:      %s", tt.input, tt.expected, got)
		}
	}
}

func TestRemoveFileIgnoreNotExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveFileIgnoreNotExists(path); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists")
	}
	if err := RemoveFileIgnoreNotExists(path); err != nil {
		t.Errorf("unexpected error on missing file: %v", err)
	}
}
