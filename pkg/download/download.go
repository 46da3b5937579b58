package download

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bugmaschine/vidsniff/pkg/ffmpeg"
	"github.com/grafov/m3u8"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/time/rate"
)

type Options struct {
	UserAgent string
	Debug     bool
	// RateLimit is in bytes per second per download, 0 for no limit.
	RateLimit float64
	// Output receives the progress bars, stdout when nil.
	Output io.Writer
	Client *http.Client
}

type Downloader struct {
	client     *http.Client
	progress   *mpb.Progress
	totalBar   *mpb.Bar
	totalSize  int64
	rateLimit  float64
	userAgent  string
	ffmpegPath string
	debug      bool
	mu         sync.Mutex
}

func NewDownloader(opts Options) *Downloader {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	var progressOpts []mpb.ContainerOption
	if opts.Output != nil {
		progressOpts = append(progressOpts, mpb.WithOutput(opts.Output))
	}

	return &Downloader{
		client:    client,
		progress:  mpb.New(progressOpts...),
		rateLimit: opts.RateLimit,
		userAgent: opts.UserAgent,
		debug:     opts.Debug,
	}
}

// SetFfmpegPath enables remuxing HLS transport streams into the requested
// container. Without it HLS downloads are kept as .ts files.
func (d *Downloader) SetFfmpegPath(path string) {
	d.ffmpegPath = path
}

// DownloadToFile fetches task and returns the path the result was written to,
// which differs from task.OutputPath when an HLS stream could not be remuxed.
func (d *Downloader) DownloadToFile(ctx context.Context, task *Task) (string, error) {
	slog.Debug("Starting download to file", "url", task.Url, "path", task.OutputPath)

	resp, err := d.get(ctx, task.Url, task.Referer)
	if err != nil {
		return "", err
	}
	slog.Debug("Got response", "status", resp.Status, "content-type", resp.Header.Get("Content-Type"))
	defer resp.Body.Close()

	message := task.CustomMessage
	if message == "" {
		message = task.Filename()
	}

	if task.ForceHLS || isM3U8(resp) {
		slog.Debug("Detected M3U8 playlist, starting HLS download")
		return d.m3u8Download(ctx, resp, task, message)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if task.OverwriteFile {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}

	targetFile, err := os.OpenFile(task.OutputPath, flags, 0644)
	if err != nil {
		return "", err
	}

	slog.Debug("Starting simple file download")
	err = d.simpleDownload(ctx, resp, targetFile, task, message)
	if cerr := targetFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(task.OutputPath)
		return "", err
	}
	return task.OutputPath, nil
}

func isM3U8(resp *http.Response) bool {
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	return strings.Contains(strings.ToLower(resp.Request.URL.Path), ".m3u8") ||
		strings.Contains(contentType, "application/vnd.apple.mpegurl") ||
		strings.Contains(contentType, "application/x-mpegurl")
}

func (d *Downloader) get(ctx context.Context, rawURL, referer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("bad status for %s: %s", rawURL, resp.Status)
	}
	return resp, nil
}

func (d *Downloader) ensureTotalBar() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.totalBar == nil {
		d.totalBar = d.progress.AddBar(0,
			mpb.BarPriority(100), // Ensure it's at the bottom
			mpb.PrependDecorators(
				decor.Name("Total ", decor.WC{W: 6}),
				decor.CountersKibiByte("% .2f / % .2f"),
			),
			d.downloadInfo(),
		)
	}
}

func (d *Downloader) downloadInfo() mpb.BarOption {
	return mpb.AppendDecorators(
		decor.Percentage(decor.WCSyncSpace),
		decor.Name(" | "),
		decor.AverageSpeed(decor.SizeB1024(0), "% .2f"),
		decor.Name(" | "),
		decor.AverageETA(decor.ET_STYLE_GO),
	)
}

func (d *Downloader) addTotalPos(n int64) {
	if d.totalBar != nil {
		d.totalBar.IncrBy(int(n))
	}
}

func (d *Downloader) addTotalSize(n int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.totalSize += n
	if d.totalBar != nil {
		d.totalBar.SetTotal(d.totalSize, false)
	}
}

// limit wraps r in a reader throttled to the configured rate. Each download
// gets its own limiter.
func (d *Downloader) limit(ctx context.Context, r io.Reader) io.Reader {
	if d.rateLimit <= 0 {
		return r
	}
	burst := max(int(d.rateLimit), 1)
	return &rateLimitedReader{
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(d.rateLimit), burst),
		ctx:     ctx,
	}
}

func (d *Downloader) simpleDownload(ctx context.Context, resp *http.Response, targetFile *os.File, task *Task, message string) error {
	contentLength := max(resp.ContentLength, 0)

	d.ensureTotalBar()
	d.addTotalSize(contentLength)
	bar := d.progress.AddBar(contentLength,
		mpb.PrependDecorators(
			decor.Name(message, decor.WC{W: len(message) + 1}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		d.downloadInfo(),
	)

	proxyReader := bar.ProxyReader(d.limit(ctx, resp.Body))
	defer proxyReader.Close()

	counter := &progressWriter{d: d, task: task, total: contentLength}
	_, err := io.Copy(targetFile, io.TeeReader(proxyReader, counter))
	if err != nil {
		bar.Abort(false)
		return err
	}

	bar.SetTotal(counter.written, true)
	return nil
}

func (d *Downloader) m3u8Download(ctx context.Context, resp *http.Response, task *Task, message string) (string, error) {
	m3u8Bytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(m3u8Bytes), true)
	if err != nil {
		return "", fmt.Errorf("failed to decode m3u8: %w", err)
	}

	var mediaPlaylist *m3u8.MediaPlaylist
	mediaPlaylistURL := resp.Request.URL

	switch listType {
	case m3u8.MASTER:
		master := p.(*m3u8.MasterPlaylist)
		variantURL, err := bestVariant(master, mediaPlaylistURL)
		if err != nil {
			return "", err
		}

		mediaPlaylistURL = variantURL
		vResp, err := d.get(ctx, variantURL.String(), task.Referer)
		if err != nil {
			return "", err
		}
		defer vResp.Body.Close()

		vp, vt, err := m3u8.DecodeFrom(vResp.Body, true)
		if err != nil {
			return "", fmt.Errorf("failed to decode media playlist: %w", err)
		}
		if vt != m3u8.MEDIA {
			return "", fmt.Errorf("variant %s is not a media playlist", variantURL)
		}
		mediaPlaylist = vp.(*m3u8.MediaPlaylist)
	case m3u8.MEDIA:
		mediaPlaylist = p.(*m3u8.MediaPlaylist)
	default:
		return "", fmt.Errorf("unsupported playlist type")
	}

	d.ensureTotalBar()
	bar := d.progress.AddBar(0, // Total will be updated as we go
		mpb.PrependDecorators(
			decor.Name(message+" ", decor.WC{W: len(message) + 1}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		d.downloadInfo(),
	)

	outputPath := task.OutputPath
	tsPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".ts"

	targetFile, err := os.OpenFile(tsPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", err
	}

	err = d.writeSegments(ctx, mediaPlaylist, mediaPlaylistURL, task, targetFile, bar)
	if cerr := targetFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		bar.Abort(false)
		_ = os.Remove(tsPath)
		return "", err
	}

	if tsPath == outputPath {
		return tsPath, nil
	}
	if d.ffmpegPath == "" {
		slog.Warn("FFmpeg not available, keeping transport stream", "path", tsPath)
		return tsPath, nil
	}

	slog.Debug("Remuxing with FFmpeg", "in", tsPath, "out", outputPath)
	if err := ffmpeg.Remux(ctx, d.ffmpegPath, tsPath, outputPath, d.debug); err != nil {
		slog.Warn("FFmpeg remux failed, keeping transport stream", "error", err)
		return tsPath, nil
	}
	_ = os.Remove(tsPath)
	return outputPath, nil
}

// bestVariant picks the variant with the highest bandwidth as a simple
// quality heuristic.
func bestVariant(master *m3u8.MasterPlaylist, base *url.URL) (*url.URL, error) {
	if len(master.Variants) == 0 {
		return nil, fmt.Errorf("no variants in master playlist")
	}

	variants := append([]*m3u8.Variant(nil), master.Variants...)
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Bandwidth > variants[j].Bandwidth
	})

	variantURL, err := base.Parse(variants[0].URI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse variant URL: %w", err)
	}
	return variantURL, nil
}

func (d *Downloader) writeSegments(ctx context.Context, playlist *m3u8.MediaPlaylist, base *url.URL, task *Task, w io.Writer, bar *mpb.Bar) error {
	var totalDuration float64
	for _, seg := range playlist.Segments {
		if seg == nil {
			break
		}
		totalDuration += seg.Duration
	}

	var downloadedBytes int64
	var downloadedDuration float64
	var currentKey []byte
	var currentIV string
	var lastEstimation int64

	for i, segment := range playlist.Segments {
		if segment == nil {
			break
		}

		key := segment.Key
		if i == 0 && key == nil {
			key = playlist.Key
		}
		if key != nil {
			switch key.Method {
			case "NONE":
				currentKey, currentIV = nil, ""
			case "AES-128":
				keyBytes, err := d.fetchKey(ctx, base, key.URI, task.Referer)
				if err != nil {
					return err
				}
				currentKey, currentIV = keyBytes, key.IV
			default:
				return fmt.Errorf("unsupported encryption method: %s", key.Method)
			}
		}

		segmentURL, err := base.Parse(segment.URI)
		if err != nil {
			return err
		}

		sResp, err := d.get(ctx, segmentURL.String(), task.Referer)
		if err != nil {
			return err
		}
		segmentBytes, err := io.ReadAll(d.limit(ctx, sResp.Body))
		sResp.Body.Close()
		if err != nil {
			return err
		}

		if currentKey != nil {
			iv, err := segmentIV(currentIV, playlist.SeqNo+uint64(i))
			if err != nil {
				return err
			}
			segmentBytes, err = decryptSegment(segmentBytes, currentKey, iv)
			if err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
		}

		n, err := w.Write(segmentBytes)
		if err != nil {
			return err
		}
		downloadedBytes += int64(n)
		downloadedDuration += segment.Duration

		// Estimation
		estimatedTotal := downloadedBytes
		if downloadedDuration > 0 {
			estimatedTotal = int64((float64(downloadedBytes) * totalDuration) / downloadedDuration)
		}
		bar.SetTotal(estimatedTotal, false)

		// Update total bar with the change in estimation
		d.addTotalSize(estimatedTotal - lastEstimation)
		lastEstimation = estimatedTotal

		bar.SetCurrent(downloadedBytes)
		d.addTotalPos(int64(n))
		task.report(downloadedBytes, estimatedTotal)
	}

	bar.SetTotal(downloadedBytes, true)
	task.report(downloadedBytes, downloadedBytes)
	return nil
}

func (d *Downloader) fetchKey(ctx context.Context, base *url.URL, uri, referer string) ([]byte, error) {
	keyURL, err := base.Parse(uri)
	if err != nil {
		return nil, err
	}
	kResp, err := d.get(ctx, keyURL.String(), referer)
	if err != nil {
		return nil, err
	}
	defer kResp.Body.Close()
	return io.ReadAll(kResp.Body)
}

// segmentIV returns the explicit IV, or the media sequence number as IV when
// the playlist gives none.
func segmentIV(iv string, seq uint64) ([]byte, error) {
	if iv != "" {
		ivStr := strings.TrimPrefix(strings.TrimPrefix(iv, "0x"), "0X")
		return hex.DecodeString(ivStr)
	}
	out := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint64(out[8:], seq)
	return out, nil
}

func decryptSegment(data, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid IV length %d", len(iv))
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("encrypted segment length %d is not a multiple of the block size", len(data))
	}

	decrypted := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, data)

	// Unpad PKCS7
	paddingLen := int(decrypted[len(decrypted)-1])
	if paddingLen > 0 && paddingLen <= aes.BlockSize {
		return decrypted[:len(decrypted)-paddingLen], nil
	}
	return decrypted, nil
}

type progressWriter struct {
	d       *Downloader
	task    *Task
	total   int64
	written int64
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	pw.written += int64(len(p))
	pw.d.addTotalPos(int64(len(p)))
	pw.task.report(pw.written, pw.total)
	return len(p), nil
}

// Wait finishes the total bar and blocks until every bar is rendered. The
// downloader cannot be used afterwards.
func (d *Downloader) Wait() {
	d.mu.Lock()
	if d.totalBar != nil {
		d.totalBar.SetTotal(-1, true)
	}
	d.mu.Unlock()
	d.progress.Wait()
}

type rateLimitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func (r *rateLimitedReader) Read(p []byte) (int, error) {
	// WaitN fails for more tokens than the burst allows.
	if b := r.limiter.Burst(); len(p) > b {
		p = p[:b]
	}
	n, err := r.r.Read(p)
	if n > 0 {
		if err := r.limiter.WaitN(r.ctx, n); err != nil {
			return n, err
		}
	}
	return n, err
}
