// ABOUTME: Streaming audio decoders for the formats the visualizer can play
// ABOUTME: Provides the Decoder interface, a format registry and per-codec sources
// Package decode turns encoded audio streams into audio.Source values.
//
// Supports: MP3, FLAC, WAV, Ogg Vorbis, Ogg Opus, plus anything ffmpeg can
// read (AAC, M4A, HLS playlists) through FFmpegSource.
//
// Every source yields interleaved float32 samples at the stream's native
// rate; resampling to the output device happens downstream.
//
// Example:
//
//	src, err := decode.Default.Open(decode.FormatFromPath(path), file)
//	n, err := src.ReadSamples(buf)
package decode
