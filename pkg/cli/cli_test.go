package cli

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bugmaschine/vidsniff/internal/config"
	"github.com/bugmaschine/vidsniff/internal/discovery"
	"github.com/bugmaschine/vidsniff/pkg/download"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
)

func TestParseRateLimit(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		wantErr  bool
	}{
		{"inf", 0, false},
		{"INF", 0, false},
		{"100", 100, false},
		{"500k", 500_000, false},
		{"1.5M", 1_500_000, false},
		{"2Mi", 2 * 1024 * 1024, false},
		{"1 GiB", 1024 * 1024 * 1024, false},
		{"fast", 0, true},
		{"10 parsecs", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseRateLimit(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("\nInput:    %s\nExpected error: %v\nGot:      %v", tt.input, tt.wantErr, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("\nInput:    %s\nExpected: %v\nGot:      %v", tt.input, tt.expected, got)
		}
	}
}

func TestParseVideoSelection(t *testing.T) {
	tests := []struct {
		input    string
		expected Selection
		wantErr  bool
	}{
		{"all", nil, false},
		{"", nil, false},
		{"3", Selection{{3, 3}}, false},
		{"1-3,5", Selection{{1, 3}, {5, 5}}, false},
		{"5, 1-2, 2-3", Selection{{1, 3}, {5, 5}}, false},
		{"1-9999999999", Selection{{1, 9999999999}}, false},
		{"3-1", nil, true},
		{"1-2-3", nil, true},
		{"x", nil, true},
	}

	for _, tt := range tests {
		got, err := ParseVideoSelection(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("\nInput:    %q\nExpected error: %v\nGot:      %v", tt.input, tt.wantErr, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("\nInput:    %q\nExpected: %v\nGot:      %v", tt.input, tt.expected, got)
		}
	}
}

func TestSelectionContains(t *testing.T) {
	assert := assert_.New(t)

	all, err := ParseVideoSelection("all")
	assert.NoError(err)
	assert.True(all.All())
	assert.True(all.Contains(42))
	assert.Equal("all", all.String())

	sel, err := ParseVideoSelection("7, 1-3, 10-9999999999")
	assert.NoError(err)
	assert.False(sel.All())
	for _, id := range []int64{1, 2, 3, 7, 10, 5_000_000_000, 9999999999} {
		assert.True(sel.Contains(id), "id %d", id)
	}
	for _, id := range []int64{0, 4, 6, 8, 9, 10_000_000_000} {
		assert.False(sel.Contains(id), "id %d", id)
	}
	assert.Equal("1-3,7,10-9999999999", sel.String())
}

func TestCommands(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)

	args := &Args{}
	cmd := NewRootCommand(args)
	cmd.SetArgs([]string{"download", "https://example.com/watch", "--videos", "1-2", "-N", "5", "--debounce", "2s", "--browser", "--static"})
	require.NoError(cmd.Execute())

	assert.Equal(CommandDownload, args.Command)
	assert.Equal("https://example.com/watch", args.Url)
	assert.Equal("1-2", args.Videos)
	assert.True(args.Static)

	v, err := config.New(afero.NewMemMapFs(), "")
	require.NoError(err)
	require.NoError(BindFlags(args.Flags, v))

	c, err := config.Load(v)
	require.NoError(err)
	assert.Equal(5, c.Download.Concurrent)
	assert.Equal(2*time.Second, c.Discovery.Debounce)
	assert.False(c.Browser.Headless)
	// untouched flags leave the defaults alone
	assert.Equal(3, c.Download.Retries)
	assert.Equal(5000, c.Discovery.BackgroundCap)
}

func TestCommandsRequireURL(t *testing.T) {
	args := &Args{}
	cmd := NewRootCommand(args)
	cmd.SetArgs([]string{"scan"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert_.Error(t, cmd.Execute())
	assert_.Empty(t, args.Command)
}

func TestPrintVideos(t *testing.T) {
	color.NoColor = true
	assert := assert_.New(t)

	var buf bytes.Buffer
	PrintVideos(&buf, nil)
	assert.Equal("No videos found\n", buf.String())

	size := int64(250_800_000)
	buf.Reset()
	PrintVideos(&buf, []discovery.Record{
		{ID: 1, URL: "https://example.com/a.mp4", Title: "Clip", Duration: "2:05", Quality: "1080p", Format: "mp4", EstimatedSizeBytes: &size},
		{ID: 2, URL: "https://example.com/live.m3u8", Title: "Live", Duration: "Unknown", Quality: "Auto", Format: "HLS"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(lines, 3)
	assert.True(strings.HasPrefix(lines[0], "ID"))
	assert.Contains(lines[1], "239.2 MB")
	assert.Contains(lines[1], "https://example.com/a.mp4")
	assert.Contains(lines[2], "Unknown size")
	assert.Contains(lines[2], "HLS")
}

func TestPrintDownloads(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	PrintDownloads(&buf, []download.Status{
		{ID: 1, VideoID: 4, State: download.StateComplete, Path: "downloads/a.mp4"},
		{ID: 2, VideoID: 2, State: download.StateComplete, Path: "downloads/b.mp4", Skipped: true},
		{ID: 3, VideoID: 7, State: download.StateFailed, Filename: "c.mp4", Error: errors.New("bad status").Error()},
	})

	assert_.Equal(t, "done 4 downloads/a.mp4\nskipped 2 downloads/b.mp4 (exists)\nfailed 7 c.mp4: bad status\n", buf.String())
}
