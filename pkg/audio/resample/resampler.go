// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Brings decoded sources to the output device rate using linear interpolation
package resample

// Resampler performs linear interpolation to convert between sample rates.
// It carries the last input frame across calls so chunk boundaries stay continuous.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
	lastFrame  []float32
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]float32, channels),
	}
}

// Passthrough reports whether the rates match and no work is needed
func (r *Resampler) Passthrough() bool {
	return r.inputRate == r.outputRate
}

// Resample converts interleaved input at inputRate and appends the result at
// outputRate to dst.
func (r *Resampler) Resample(input []float32, dst []float32) []float32 {
	if r.Passthrough() {
		return append(dst, input...)
	}
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return dst
	}

	// frame(-1) is the previous chunk's last frame
	frameAt := func(idx, ch int) float32 {
		if idx < 0 {
			return r.lastFrame[ch]
		}
		return input[idx*r.channels+ch]
	}

	start := 0.0
	if !r.primed {
		// Without history, begin at the first real frame
		start = 1.0
		r.primed = true
	}
	pos := r.position + start

	// Positions are offset by one: pos 0 is lastFrame, pos k is input[k-1]
	for {
		idx := int(pos)
		if idx >= inputFrames {
			break
		}
		frac := float32(pos - float64(idx))
		for ch := 0; ch < r.channels; ch++ {
			s1 := frameAt(idx-1, ch)
			s2 := frameAt(idx, ch)
			dst = append(dst, s1*(1-frac)+s2*frac)
		}
		pos += r.ratio
	}

	r.position = pos - float64(inputFrames)
	copy(r.lastFrame, input[(inputFrames-1)*r.channels:inputFrames*r.channels])
	return dst
}

// Reset clears the interpolation history
func (r *Resampler) Reset() {
	r.position = 0
	r.primed = false
	for i := range r.lastFrame {
		r.lastFrame[i] = 0
	}
}

// OutputSamplesNeeded estimates how many output samples a chunk of input produces
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}
