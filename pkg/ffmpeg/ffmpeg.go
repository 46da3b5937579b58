// Package ffmpeg finds an ffmpeg binary and uses it to remux HLS transport
// streams into a proper container.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

var ErrNotFound = errors.New("ffmpeg not found")

// Locate returns the ffmpeg binary to use. An explicit path wins, then the
// PATH, then a binary dropped into dataDir by the user.
func Locate(explicit, dataDir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("configured ffmpeg %s: %w", explicit, err)
		}
		return explicit, nil
	}

	if path, err := exec.LookPath(executableName()); err == nil {
		return path, nil
	}

	if dataDir != "" {
		dataPath := filepath.Join(dataDir, executableName())
		if _, err := os.Stat(dataPath); err == nil {
			return dataPath, nil
		}
	}

	return "", ErrNotFound
}

// Remux copies the streams of in into out without re-encoding. out must not
// exist yet.
func Remux(ctx context.Context, ffmpegPath, in, out string, debug bool) error {
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-hide_banner",
		"-n",
		"-i", in,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		out,
	)

	var stderr bytes.Buffer
	if debug {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stderr = &stderr
	}

	slog.Debug("Running ffmpeg", "args", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		if msg := lastLine(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg remux failed: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg remux failed: %w", err)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func executableName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}
