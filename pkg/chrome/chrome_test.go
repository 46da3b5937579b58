package chrome

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bugmaschine/vidsniff/internal/dom"
	"github.com/bugmaschine/vidsniff/internal/scanner"
	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
)

const sampleSnapshot = `{
	"url": "https://example.com/watch",
	"title": "Watch page",
	"html": "",
	"root": {"t": "html", "c": [
		{"t": "head", "c": [{"t": "title", "c": [{"x": "Watch page"}]}]},
		{"t": "body", "c": [
			{"t": "video", "a": {"src": "/media/clip.mp4", "title": "Clip"}, "u": "https://example.com/media/clip.mp4",
			 "m": {"vw": 1920, "vh": 1080, "d": 125.4}},
			{"t": "div", "a": {"class": "hero"}, "bg": "url(\"https://cdn.example.com/loop.webm\")"},
			{"t": "iframe", "a": {"src": "https://www.youtube.com/embed/abc"}, "u": "https://www.youtube.com/embed/abc"}
		]}
	]}
}`

func TestDecodeSnapshot(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)

	doc, err := decodeSnapshot(sampleSnapshot)
	require.NoError(err)
	assert.Equal("Watch page", doc.Title())

	report := scanner.Run(doc, scanner.Default(scanner.Options{}))
	require.NoError(report.Err)

	var urls []string
	for _, c := range report.Candidates() {
		urls = append(urls, c.URL)
	}
	assert.Equal([]string{
		"https://example.com/media/clip.mp4",
		"https://www.youtube.com/embed/abc",
		"https://cdn.example.com/loop.webm",
	}, urls)
}

func TestDecodeSnapshotMalformed(t *testing.T) {
	_, err := decodeSnapshot("{")
	assert_.Error(t, err)

	_, err = decodeSnapshot(`{"url": "https://example.com", "root": null}`)
	assert_.Error(t, err)
}

func TestDecodeMutation(t *testing.T) {
	tests := []struct {
		payload  string
		relevant bool
	}{
		{`[{"t": "DIV", "m": false}]`, false},
		{`[{"t": "DIV", "m": false}, {"t": "VIDEO", "m": false}]`, true},
		{`[{"t": "SECTION", "m": true}]`, true},
		{`[{"t": "IFRAME", "m": false}]`, true},
		{`[]`, false},
	}

	for _, tt := range tests {
		m, err := decodeMutation(tt.payload)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.payload, err)
		}
		if m.Relevant() != tt.relevant {
			t.Errorf("\nInput:    %s\nExpected: %v\nGot:      %v", tt.payload, tt.relevant, m.Relevant())
		}
	}

	if _, err := decodeMutation("not json"); err == nil {
		t.Error("expected an error for a malformed payload")
	}
}

func TestScripts(t *testing.T) {
	assert := assert_.New(t)

	assert.Contains(snapshotScript(5000), "const cap = 5000;")
	assert.Contains(snapshotScript(0), "const cap = 0;")
	assert.Contains(observerScript, "window."+mutationBinding+"(")
	assert.Contains(observerScript, "obs.observe(document.body || document.documentElement,")
	assert.Contains(disconnectScript, observerProperty)
}

func TestFindChromium(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "chrome")
	require_.NoError(t, os.WriteFile(bin, nil, 0755))

	got, err := findChromium(bin)
	assert_.NoError(t, err)
	assert_.Equal(t, bin, got)

	_, err = findChromium(bin + "-missing")
	assert_.Error(t, err)

	t.Setenv("PATH", t.TempDir())
	got, err = findChromium("")
	assert_.NoError(t, err)
	assert_.Empty(t, got)
}

func TestLiveDocumentResolve(t *testing.T) {
	doc, err := decodeSnapshot(sampleSnapshot)
	require_.NoError(t, err)

	got := doc.Resolve("/other/clip.webm")
	assert_.True(t, strings.HasPrefix(got, "https://example.com/"))
	assert_.Equal(t, "https://example.com/other/clip.webm", got)

	var _ dom.Observer = (*Page)(nil)
}
