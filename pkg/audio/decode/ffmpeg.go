// ABOUTME: ffmpeg-backed source for formats without a native Go decoder
// ABOUTME: Pipes any file, URL or HLS playlist through ffmpeg as s16le PCM
package decode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/visual-lock/visuallock/pkg/audio"
)

// FFmpegSource decodes through an ffmpeg child process
type FFmpegSource struct {
	*PCM16Source
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.ReadCloser
}

// NewFFmpeg starts ffmpeg on input (path or URL) with a fixed output format
func NewFFmpeg(ctx context.Context, input string, format audio.Format) (*FFmpegSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-i", input,
		"-f", "s16le",
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.Channels),
		"-")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to get ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	return &FFmpegSource{
		PCM16Source: NewPCM16(bufio.NewReader(stdout), nil, format),
		cmd:         cmd,
		cancel:      cancel,
		stdout:      stdout,
	}, nil
}

func (s *FFmpegSource) Close() error {
	s.cancel()
	s.stdout.Close()
	_ = s.cmd.Wait()
	return nil
}
