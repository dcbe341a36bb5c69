// ABOUTME: Oto-based audio output implementation
// ABOUTME: Handles PCM playback with software volume control using oto library
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/pkg/audio"
)

var (
	sharedOnce sync.Once
	shared     *Oto
)

// Shared returns the process-wide oto output
func Shared() *Oto {
	sharedOnce.Do(func() {
		shared = NewOto()
	})
	return shared
}

// Oto output implementation using oto library
type Oto struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	format     audio.Format
	volume     float64
	muted      bool
	suspended  bool
}

var _ Output = (*Oto)(nil)

// NewOto creates an oto output. Prefer Shared: oto refuses a second context.
func NewOto() *Oto {
	return &Oto{volume: 0.5}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil {
		if o.format.SampleRate != sampleRate || o.format.Channels != channels {
			logger.Debug("oto context already running, keeping its format",
				logger.Int("sample_rate", o.format.SampleRate),
				logger.Int("channels", o.format.Channels))
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.format = audio.Format{SampleRate: sampleRate, Channels: channels}

	// Persistent player fed by a pipe for continuous streaming
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()

	logger.Info("audio output initialized",
		logger.Int("sample_rate", sampleRate),
		logger.Int("channels", channels))
	return nil
}

// Format reports the running format
func (o *Oto) Format() audio.Format {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.format
}

// Write outputs audio samples, scaling them in place by the current volume.
// It blocks until the player consumes them.
func (o *Oto) Write(samples []float32) error {
	o.mu.Lock()
	if o.pipeWriter == nil {
		o.mu.Unlock()
		return fmt.Errorf("output not initialized")
	}
	volume, muted, writer := o.volume, o.muted, o.pipeWriter

	o.mu.Unlock()

	applyVolume(samples, volume, muted)

	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(audio.FloatToInt16(s)))
	}

	if _, err := writer.Write(out); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// SetVolume sets the linear gain (0-1)
func (o *Oto) SetVolume(volume float64) {
	o.mu.Lock()
	o.volume = clampVolume(volume)
	o.mu.Unlock()
}

// Volume returns the current gain
func (o *Oto) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()
}

// Resume restarts playback if the context was suspended
func (o *Oto) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.otoCtx == nil || !o.suspended {
		return nil
	}
	if err := o.otoCtx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}
	o.suspended = false
	return nil
}

// Suspend pauses the device
func (o *Oto) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.otoCtx == nil || o.suspended {
		return nil
	}
	if err := o.otoCtx.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend oto context: %w", err)
	}
	o.suspended = true
	return nil
}

// Suspended reports whether the device is paused
func (o *Oto) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suspended
}

// Close stops the player. The oto context itself lives until process exit.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil && !o.suspended {
		o.otoCtx.Suspend()
		o.suspended = true
	}
	return nil
}
