package ffmpeg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocateExplicit(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "my-ffmpeg")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := Locate(bin, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != bin {
		t.Errorf("\nExpected: %s\nGot:      %s", bin, got)
	}

	if _, err := Locate(filepath.Join(dir, "missing"), ""); err == nil {
		t.Error("expected an error for a missing explicit binary")
	}
}

func TestLocateDataDir(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	dataDir := t.TempDir()
	if _, err := Locate("", dataDir); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	bin := filepath.Join(dataDir, executableName())
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	got, err := Locate("", dataDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != bin {
		t.Errorf("\nExpected: %s\nGot:      %s", bin, got)
	}
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"one line", "one line"},
		{"first\nsecond\n\n", "second"},
	}

	for _, tt := range tests {
		got := lastLine(tt.input)
		if got != tt.expected {
			t.Errorf("\nInput:    %q\nExpected: %s\nGot:      %s", tt.input, tt.expected, got)
		}
	}
}
