// ABOUTME: Malgo-based microphone capture
// ABOUTME: Converts S16 device frames to float samples and buffers them for readers
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/pkg/audio"
)

// ErrDeviceUnavailable wraps failures to open the input device, which
// includes the OS refusing microphone access
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// Config selects the capture format
type Config struct {
	SampleRate int
	Channels   int
	// BufferMillis sizes the ring buffer; defaults to 500ms
	BufferMillis int
}

// Device is a running capture stream
type Device struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	ring     *RingBuffer
	format   audio.Format
	scratch  []float32
	closed   bool
}

var _ audio.Source = (*Device)(nil)

// Open starts capturing from the default input device
func Open(cfg Config) (*Device, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.BufferMillis <= 0 {
		cfg.BufferMillis = 500
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize malgo context: %v", ErrDeviceUnavailable, err)
	}

	d := &Device{
		malgoCtx: ctx,
		ring:     NewRingBuffer(cfg.SampleRate * cfg.Channels * cfg.BufferMillis / 1000),
		format:   audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels},
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			d.dataCallback(pInputSamples, frameCount)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		d.freeContext()
		return nil, fmt.Errorf("%w: failed to initialize capture device: %v", ErrDeviceUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		d.freeContext()
		return nil, fmt.Errorf("%w: failed to start capture device: %v", ErrDeviceUnavailable, err)
	}
	d.device = device

	logger.Info("capture device started",
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("channels", cfg.Channels))
	return d, nil
}

// dataCallback runs on the audio thread
func (d *Device) dataCallback(input []byte, frameCount uint32) {
	total := int(frameCount) * d.format.Channels
	if len(input) < total*2 {
		total = len(input) / 2
	}
	if cap(d.scratch) < total {
		d.scratch = make([]float32, total)
	}
	samples := d.scratch[:total]
	for i := range samples {
		samples[i] = audio.Int16ToFloat(int16(binary.LittleEndian.Uint16(input[i*2:])))
	}
	d.ring.Write(samples)
}

func (d *Device) Format() audio.Format { return d.format }

// ReadSamples blocks until captured audio is available
func (d *Device) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%d.format.Channels
	return d.ring.Read(dst[:want])
}

// Dropped reports samples lost to reader stalls
func (d *Device) Dropped() int {
	return d.ring.Dropped()
}

// Close stops the device and releases miniaudio resources
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if d.device != nil {
		if err := d.device.Stop(); err != nil {
			logger.Warn("capture device stop error", logger.ErrorField(err))
		}
		d.device.Uninit()
		d.device = nil
	}
	d.ring.Close()
	d.freeContext()
	return nil
}

func (d *Device) freeContext() {
	if d.malgoCtx != nil {
		if err := d.malgoCtx.Uninit(); err != nil {
			logger.Warn("malgo context uninit error", logger.ErrorField(err))
		}
		d.malgoCtx.Free()
		d.malgoCtx = nil
	}
}
