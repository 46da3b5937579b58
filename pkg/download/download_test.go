package download

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bugmaschine/vidsniff/internal/discovery"
	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
)

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:4
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:4.0,
seg0.ts
#EXTINF:4.0,
seg1.ts
#EXT-X-ENDLIST
`

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
low.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080
media.m3u8
`

var testKey = []byte("0123456789abcdef")

func encryptSegment(t *testing.T, plain []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(testKey)
	if err != nil {
		t.Fatal(err)
	}
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte(nil), plain...), bytes.Repeat([]byte{byte(pad)}, pad)...)
	out := make([]byte, len(padded))
	iv := make([]byte, aes.BlockSize)
	iv[15] = 1
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out
}

func newTestServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	var flaky atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != "" {
			w.Header().Set("X-Referer", r.Header.Get("Referer"))
		}
		w.Header().Set("Content-Length", "11")
		_, _ = io.WriteString(w, "hello video")
	})
	mux.HandleFunc("/flaky.mp4", func(w http.ResponseWriter, r *http.Request) {
		if flaky.Add(1) == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "second try")
	})
	mux.HandleFunc("/gone.mp4", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, masterPlaylist)
	})
	mux.HandleFunc("/media.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, mediaPlaylist)
	})
	mux.HandleFunc("/low.m3u8", func(w http.ResponseWriter, r *http.Request) {
		t.Error("low bandwidth variant should not be requested")
	})
	mux.HandleFunc("/seg0.ts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "segment-0;")
	})
	mux.HandleFunc("/seg1.ts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "segment-1;")
	})
	mux.HandleFunc("/enc/media.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "#EXTM3U\n#EXT-X-TARGETDURATION:4\n"+
			"#EXT-X-KEY:METHOD=AES-128,URI=\"key.bin\",IV=0x00000000000000000000000000000001\n"+
			"#EXTINF:4.0,\nseg0.ts\n#EXT-X-ENDLIST\n")
	})
	mux.HandleFunc("/enc/key.bin", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(testKey)
	})
	mux.HandleFunc("/enc/seg0.ts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(encryptSegment(t, []byte("secret segment")))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &flaky
}

func newTestDownloader() *Downloader {
	return NewDownloader(Options{UserAgent: "vidsniff-test", Output: io.Discard})
}

func TestDownloadToFile(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)
	srv, _ := newTestServer(t)

	var received, total int64
	out := filepath.Join(t.TempDir(), "clip.mp4")
	task := NewTask(out, srv.URL+"/clip.mp4").SetProgress(func(r, tot int64) {
		received, total = r, tot
	})

	path, err := newTestDownloader().DownloadToFile(context.Background(), task)
	require.NoError(err)
	assert.Equal(out, path)

	data, err := os.ReadFile(out)
	require.NoError(err)
	assert.Equal("hello video", string(data))
	assert.EqualValues(11, received)
	assert.EqualValues(11, total)
}

func TestDownloadToFileKeepsExisting(t *testing.T) {
	srv, _ := newTestServer(t)
	out := filepath.Join(t.TempDir(), "clip.mp4")
	require_.NoError(t, os.WriteFile(out, []byte("mine"), 0644))

	_, err := newTestDownloader().DownloadToFile(context.Background(), NewTask(out, srv.URL+"/clip.mp4"))
	assert_.Error(t, err)

	data, _ := os.ReadFile(out)
	assert_.Equal(t, "mine", string(data))
}

func TestDownloadToFileBadStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	out := filepath.Join(t.TempDir(), "gone.mp4")

	_, err := newTestDownloader().DownloadToFile(context.Background(), NewTask(out, srv.URL+"/gone.mp4"))
	assert_.Error(t, err)
	assert_.NoFileExists(t, out)
}

func TestDownloadHLSWithoutFfmpeg(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)
	srv, _ := newTestServer(t)

	dir := t.TempDir()
	out := filepath.Join(dir, "stream.mp4")
	path, err := newTestDownloader().DownloadToFile(context.Background(), NewTask(out, srv.URL+"/master.m3u8"))
	require.NoError(err)

	assert.Equal(filepath.Join(dir, "stream.ts"), path)
	assert.NoFileExists(out)
	data, err := os.ReadFile(path)
	require.NoError(err)
	assert.Equal("segment-0;segment-1;", string(data))
}

func TestDownloadHLSEncrypted(t *testing.T) {
	srv, _ := newTestServer(t)
	out := filepath.Join(t.TempDir(), "enc.mp4")

	path, err := newTestDownloader().DownloadToFile(context.Background(), NewTask(out, srv.URL+"/enc/media.m3u8"))
	require_.NoError(t, err)

	data, err := os.ReadFile(path)
	require_.NoError(t, err)
	assert_.Equal(t, "secret segment", string(data))
}

func TestDownloadRateLimited(t *testing.T) {
	srv, _ := newTestServer(t)
	d := NewDownloader(Options{RateLimit: 4, Output: io.Discard})
	out := filepath.Join(t.TempDir(), "clip.mp4")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// 11 bytes at 4 bytes per second cannot finish in time.
	_, err := d.DownloadToFile(ctx, NewTask(out, srv.URL+"/clip.mp4"))
	assert_.Error(t, err)
	assert_.NoFileExists(t, out)
}

func TestSegmentIV(t *testing.T) {
	iv, err := segmentIV("", 258)
	require_.NoError(t, err)
	assert_.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2}, iv)

	iv, err = segmentIV("0X000102030405060708090A0B0C0D0E0F", 0)
	require_.NoError(t, err)
	assert_.Equal(t, byte(15), iv[15])
}

func TestManager(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)
	srv, flaky := newTestServer(t)

	retryDelay = 0
	defer func() { retryDelay = 2 * time.Second }()

	dir := t.TempDir()
	tracker := NewTracker(nil)
	m := NewManager(newTestDownloader(), tracker, ManagerOptions{Concurrent: 2, Dir: dir, Retries: 1, Referer: "https://example.com/page"})

	first, err := m.Submit(discovery.Transfer{ID: 1, URL: srv.URL + "/clip.mp4", Title: "First clip", Format: "mp4"})
	require.NoError(err)
	flakyStatus, err := m.Submit(discovery.Transfer{ID: 2, URL: srv.URL + "/flaky.mp4", Title: "Flaky clip", Format: "mp4"})
	require.NoError(err)
	gone, err := m.Submit(discovery.Transfer{ID: 3, URL: srv.URL + "/gone.mp4", Title: "Gone clip", Format: "mp4"})
	require.NoError(err)
	_, err = m.Submit(discovery.Transfer{ID: 4, URL: "https://example.com/index.html", Title: "Page"})
	assert.ErrorIs(err, ErrInvalidURL)
	_, err = m.Submit(discovery.Transfer{ID: 1, URL: srv.URL + "/clip.mp4", Title: "Again", Format: "mp4"})
	assert.ErrorIs(err, ErrActive)

	m.Close()
	_, err = m.Submit(discovery.Transfer{ID: 5, URL: srv.URL + "/clip.mp4", Title: "Late", Format: "mp4"})
	assert.ErrorIs(err, ErrManagerClosed)

	err = m.Run(context.Background())
	require.Error(err, "the 404 download fails")
	assert.Contains(err.Error(), "[3]")

	s, _ := tracker.Get(first.ID)
	assert.Equal(StateComplete, s.State)
	assert.Equal(filepath.Join(dir, "First_clip.mp4"), s.Path)

	s, _ = tracker.Get(flakyStatus.ID)
	assert.Equal(StateComplete, s.State)
	assert.EqualValues(2, flaky.Load())
	data, _ := os.ReadFile(s.Path)
	assert.Equal("second try", string(data))

	s, _ = tracker.Get(gone.ID)
	assert.Equal(StateFailed, s.State)
	assert.EqualValues(3, s.VideoID)
	assert.NotEmpty(s.Error)

	// the rejected page never reached the tracker
	assert.Len(tracker.All(), 3)
}

func TestManagerCancelFailsQueued(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)
	srv, _ := newTestServer(t)

	tracker := NewTracker(nil)
	m := NewManager(newTestDownloader(), tracker, ManagerOptions{Dir: t.TempDir()})
	for i, name := range []string{"clip", "flaky", "gone"} {
		_, err := m.Submit(discovery.Transfer{ID: int64(i + 1), URL: srv.URL + "/" + name + ".mp4", Title: name, Format: "mp4"})
		require.NoError(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = m.Run(ctx)

	for _, s := range tracker.All() {
		assert.Equal(StateFailed, s.State, "download %d", s.ID)
		assert.Contains(s.Error, context.Canceled.Error())
	}

	_, err := m.Submit(discovery.Transfer{ID: 4, URL: srv.URL + "/clip.mp4", Title: "Late", Format: "mp4"})
	assert.ErrorIs(err, ErrManagerClosed)
}

func TestManagerExistingFiles(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)
	srv, _ := newTestServer(t)

	for _, skip := range []bool{true, false} {
		dir := t.TempDir()
		existing := filepath.Join(dir, "Clip.mp4")
		require.NoError(os.WriteFile(existing, []byte("old"), 0644))

		tracker := NewTracker(nil)
		m := NewManager(newTestDownloader(), tracker, ManagerOptions{Dir: dir, SkipExisting: skip})
		_, err := m.Submit(discovery.Transfer{ID: 1, URL: srv.URL + "/clip.mp4", Title: "Clip", Format: "mp4"})
		require.NoError(err)
		m.Close()
		require.NoError(m.Run(context.Background()))

		s := tracker.All()[0]
		assert.Equal(StateComplete, s.State)
		assert.Equal(skip, s.Skipped)
		if skip {
			assert.Equal(existing, s.Path)
		} else {
			assert.Equal(filepath.Join(dir, "Clip (1).mp4"), s.Path)
		}

		data, _ := os.ReadFile(existing)
		assert.Equal("old", string(data))
	}
}
