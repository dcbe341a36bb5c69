// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats, sources, band energies and sample conversions
package audio

import "io"

// Format describes a PCM stream
type Format struct {
	SampleRate int
	Channels   int
}

// Source produces interleaved float32 samples in [-1, 1].
// ReadSamples blocks until at least one frame is available and returns
// io.EOF once the stream is exhausted.
type Source interface {
	Format() Format
	ReadSamples(dst []float32) (int, error)
	io.Closer
}

// BandEnergies are smoothed fractions of spectral energy, each in [0, 1]
type BandEnergies struct {
	Sub  float64
	Bass float64
	Mid  float64
	High float64
}

// Slice returns the bands in sub, bass, mid, high order
func (b BandEnergies) Slice() [4]float64 {
	return [4]float64{b.Sub, b.Bass, b.Mid, b.High}
}

// Int16ToFloat converts a signed 16-bit sample to [-1, 1)
func Int16ToFloat(sample int16) float32 {
	return float32(sample) / 32768
}

// FloatToInt16 converts a float sample to 16-bit with clipping
func FloatToInt16(sample float32) int16 {
	if sample >= 1 {
		return 32767
	}
	if sample <= -1 {
		return -32768
	}
	return int16(sample * 32768)
}

// IntToFloat converts a signed integer sample of the given bit depth to [-1, 1)
func IntToFloat(sample int, bitDepth int) float32 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return float32(float64(sample) / float64(int64(1)<<(bitDepth-1)))
}

// MixToMono averages interleaved channels into dst, growing it as needed
func MixToMono(samples []float32, channels int, dst []float32) []float32 {
	if channels <= 1 {
		return append(dst[:0], samples...)
	}
	frames := len(samples) / channels
	dst = dst[:0]
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		dst = append(dst, sum/float32(channels))
	}
	return dst
}

// Remix converts interleaved samples from one channel count to another.
// Mono is duplicated onto every output channel; wider inputs are folded down.
func Remix(samples []float32, from, to int, dst []float32) []float32 {
	dst = dst[:0]
	if from == to {
		return append(dst, samples...)
	}
	frames := len(samples) / from
	for i := 0; i < frames; i++ {
		frame := samples[i*from : (i+1)*from]
		if from == 1 {
			for ch := 0; ch < to; ch++ {
				dst = append(dst, frame[0])
			}
			continue
		}
		var sum float32
		for _, s := range frame {
			sum += s
		}
		mono := sum / float32(from)
		for ch := 0; ch < to; ch++ {
			if ch < from && to > 1 {
				dst = append(dst, frame[ch])
			} else {
				dst = append(dst, mono)
			}
		}
	}
	return dst
}
