// ABOUTME: Microphone capture package
// ABOUTME: Exposes the default input device as an audio.Source via malgo
// Package capture reads the default capture device through miniaudio.
//
// The device callback pushes samples into a ring buffer; ReadSamples blocks
// until data arrives, so a capture source can be pumped exactly like a
// decoded file.
//
// Example:
//
//	mic, err := capture.Open(capture.Config{SampleRate: 44100, Channels: 1})
//	defer mic.Close()
//	n, err := mic.ReadSamples(buf)
package capture
