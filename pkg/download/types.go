package download

import (
	"path/filepath"
)

// Task is a single file to fetch.
type Task struct {
	Url        string
	OutputPath string
	Referer    string
	// ForceHLS treats the response as an HLS playlist even when neither the
	// URL nor the content type say so.
	ForceHLS      bool
	OverwriteFile bool
	CustomMessage string
	// Progress, when set, receives the bytes written so far and the expected
	// total (0 when unknown). For HLS the total is an estimate that is
	// refined as segments arrive.
	Progress func(received, total int64)
}

func NewTask(outputPath, url string) *Task {
	return &Task{
		Url:        url,
		OutputPath: outputPath,
	}
}

func (t *Task) SetOverwriteFile(overwrite bool) *Task {
	t.OverwriteFile = overwrite
	return t
}

func (t *Task) SetCustomMessage(message string) *Task {
	t.CustomMessage = message
	return t
}

func (t *Task) SetReferer(referer string) *Task {
	t.Referer = referer
	return t
}

func (t *Task) SetForceHLS(hls bool) *Task {
	t.ForceHLS = hls
	return t
}

func (t *Task) SetProgress(fn func(received, total int64)) *Task {
	t.Progress = fn
	return t
}

func (t *Task) Filename() string {
	return filepath.Base(t.OutputPath)
}

func (t *Task) report(received, total int64) {
	if t.Progress != nil {
		t.Progress(received, total)
	}
}
