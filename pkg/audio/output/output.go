// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends
package output

import "github.com/visual-lock/visuallock/pkg/audio"

// Output represents an audio output device
type Output interface {
	// Open initializes the output device. Later calls keep the first format.
	Open(sampleRate, channels int) error

	// Format reports the format the device actually runs at
	Format() audio.Format

	// Write outputs interleaved float samples (blocks until accepted)
	Write(samples []float32) error

	// SetVolume sets linear gain in [0, 1]
	SetVolume(volume float64)

	// Resume restarts a suspended device
	Resume() error

	// Suspend pauses the device without releasing it
	Suspend() error

	// Close releases output resources
	Close() error
}

// applyVolume scales samples in place with clipping protection
func applyVolume(samples []float32, volume float64, muted bool) {
	gain := float32(volume)
	if muted {
		gain = 0
	}
	for i, s := range samples {
		v := s * gain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		samples[i] = v
	}
}

func clampVolume(volume float64) float64 {
	if volume < 0 {
		return 0
	}
	if volume > 1 {
		return 1
	}
	return volume
}
