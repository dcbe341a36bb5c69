// ABOUTME: Spectrum analyser producing byte-scaled frequency data
// ABOUTME: Blackman window, real FFT, temporal smoothing and dB mapping onto 0..255
package analyzer

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	// FFTSize is the transform length
	FFTSize = 2048
	// BinCount is the number of frequency bins reported (FFTSize / 2)
	BinCount = FFTSize / 2

	DefaultSmoothingTimeConstant = 0.8
	DefaultMinDecibels           = -100.0
	DefaultMaxDecibels           = -30.0
)

// Analyser turns the tap's time-domain window into byte frequency data.
// Not safe for concurrent use; the graph serializes calls.
type Analyser struct {
	tap       *Tap
	fft       *fourier.FFT
	smoothing float64
	minDB     float64
	maxDB     float64

	timeDomain []float64
	coeffs     []complex128
	smoothed   []float64
}

// NewAnalyser creates an analyser reading from tap
func NewAnalyser(tap *Tap) *Analyser {
	return &Analyser{
		tap:        tap,
		fft:        fourier.NewFFT(FFTSize),
		smoothing:  DefaultSmoothingTimeConstant,
		minDB:      DefaultMinDecibels,
		maxDB:      DefaultMaxDecibels,
		timeDomain: make([]float64, FFTSize),
		coeffs:     make([]complex128, FFTSize/2+1),
		smoothed:   make([]float64, BinCount),
	}
}

// ByteFrequencyData fills dst (grown to BinCount) with the current spectrum
func (a *Analyser) ByteFrequencyData(dst []byte) []byte {
	if cap(dst) < BinCount {
		dst = make([]byte, BinCount)
	}
	dst = dst[:BinCount]

	a.timeDomain = a.tap.Samples(a.timeDomain[:FFTSize])
	window.Blackman(a.timeDomain)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.timeDomain)

	scale := 255 / (a.maxDB - a.minDB)
	for k := 0; k < BinCount; k++ {
		mag := cmplxAbs(a.coeffs[k]) / FFTSize
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag

		if a.smoothed[k] <= 0 {
			dst[k] = 0
			continue
		}
		db := 20 * math.Log10(a.smoothed[k])
		v := math.Floor((db - a.minDB) * scale)
		switch {
		case v < 0:
			dst[k] = 0
		case v > 255:
			dst[k] = 255
		default:
			dst[k] = byte(v)
		}
	}
	return dst
}

// Reset clears smoothing history
func (a *Analyser) Reset() {
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
