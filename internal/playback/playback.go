// ABOUTME: Turns a source choice into an audio source for the graph
// ABOUTME: Local files, resolved media URLs and the microphone
package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/visual-lock/visuallock/internal/analyzer"
	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/internal/resolver"
	"github.com/visual-lock/visuallock/pkg/audio"
	"github.com/visual-lock/visuallock/pkg/audio/capture"
	"github.com/visual-lock/visuallock/pkg/audio/decode"
)

// Config configures an Opener
type Config struct {
	Registry   *decode.Registry
	HTTPClient *http.Client
	// FFmpegFormat is the PCM layout requested from ffmpeg
	FFmpegFormat audio.Format
	Capture      capture.Config
	// OpenCapture replaces the capture device, used by tests
	OpenCapture func(capture.Config) (audio.Source, error)
}

// Opener builds graph openers for each source mode
type Opener struct {
	registry    *decode.Registry
	client      *http.Client
	ffmpeg      audio.Format
	capture     capture.Config
	openCapture func(capture.Config) (audio.Source, error)
}

// NewOpener creates an Opener with defaults filled in
func NewOpener(cfg Config) *Opener {
	o := &Opener{
		registry:    cfg.Registry,
		client:      cfg.HTTPClient,
		ffmpeg:      cfg.FFmpegFormat,
		capture:     cfg.Capture,
		openCapture: cfg.OpenCapture,
	}
	if o.registry == nil {
		o.registry = decode.Default
	}
	if o.client == nil {
		o.client = &http.Client{}
	}
	if o.ffmpeg.SampleRate == 0 {
		o.ffmpeg = audio.Format{SampleRate: 44100, Channels: 2}
	}
	if o.capture.SampleRate == 0 {
		o.capture.SampleRate = 44100
	}
	if o.capture.Channels == 0 {
		o.capture.Channels = 1
	}
	if o.openCapture == nil {
		o.openCapture = func(c capture.Config) (audio.Source, error) {
			return capture.Open(c)
		}
	}
	return o
}

// Microphone opens the default capture device
func (o *Opener) Microphone() analyzer.Opener {
	return func() (audio.Source, error) {
		return o.openCapture(o.capture)
	}
}

// File opens a local file; loop restarts it at end of stream
func (o *Opener) File(path string, loop bool) analyzer.Opener {
	return func() (audio.Source, error) {
		open := func() (audio.Source, error) { return o.openFile(path) }
		if !loop {
			return open()
		}
		return NewLoop(open)
	}
}

// Media opens a resolved media URI
func (o *Opener) Media(ctx context.Context, media resolver.PlayableMedia) analyzer.Opener {
	return func() (audio.Source, error) {
		if media.Segmented {
			return o.openSegmented(ctx, media)
		}
		return o.openProgressive(ctx, media.URI)
	}
}

func (o *Opener) openFile(path string) (audio.Source, error) {
	format := decode.FormatFromPath(path)
	if _, ok := o.registry.Get(format); !ok {
		logger.Info("No native decoder, using ffmpeg", logger.String("path", path))
		return decode.NewFFmpeg(context.Background(), path, o.ffmpeg)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	src, err := o.registry.Open(format, f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return src, nil
}

// Loop restarts a source whenever it reaches end of stream
type Loop struct {
	open func() (audio.Source, error)

	mu     sync.Mutex
	src    audio.Source
	format audio.Format
}

// NewLoop opens the first pass immediately so format errors surface early
func NewLoop(open func() (audio.Source, error)) (*Loop, error) {
	src, err := open()
	if err != nil {
		return nil, err
	}
	return &Loop{open: open, src: src, format: src.Format()}, nil
}

func (l *Loop) Format() audio.Format { return l.format }

func (l *Loop) ReadSamples(dst []float32) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Two empty passes in a row mean the file has no audio
	for attempt := 0; attempt < 2; attempt++ {
		if l.src == nil {
			return 0, io.ErrClosedPipe
		}
		n, err := l.src.ReadSamples(dst)
		if n > 0 {
			return n, nil
		}
		if err != io.EOF {
			return 0, err
		}

		l.src.Close()
		next, err := l.open()
		if err != nil {
			l.src = nil
			return 0, fmt.Errorf("failed to restart loop: %w", err)
		}
		l.src = next
		logger.Debug("Looping source")
	}
	return 0, io.EOF
}

func (l *Loop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.src == nil {
		return nil
	}
	err := l.src.Close()
	l.src = nil
	return err
}
