// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts float32 audio between different sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates and keeps
// state between chunks so a stream can be converted block by block.
//
// Example:
//
//	r := resample.New(48000, 44100, 2)
//	out = r.Resample(block, out[:0])
package resample
