// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, the pull-based Source interface and band energies
// Package audio provides the types shared by every stage of the visualizer's
// signal path:
//   - Format: sample rate and channel count of a PCM stream
//   - Source: a pull-based stream of interleaved float32 samples
//   - BandEnergies: the four smoothed spectral bands fed to renderers
//
// It also provides conversions between integer PCM and float32 samples.
//
// Example:
//
//	buf := make([]float32, 1024*src.Format().Channels)
//	n, err := src.ReadSamples(buf)
//	mono := audio.MixToMono(buf[:n], src.Format().Channels, nil)
package audio
