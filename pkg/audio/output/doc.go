// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface and the process-wide oto sink
// Package output provides audio playback.
//
// oto permits a single device context per process, so Shared returns one
// lazily created sink that every audible source writes into. Callers adapt
// their streams to the sink's Format.
//
// Example:
//
//	out := output.Shared()
//	err := out.Open(44100, 2)
//	err = out.Write(samples)
package output
