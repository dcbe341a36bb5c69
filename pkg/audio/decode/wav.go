// ABOUTME: WAV audio decoder
// ABOUTME: Reads integer PCM WAV through go-audio/wav
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/visual-lock/visuallock/pkg/audio"
)

// ErrNotWAV is returned for input without a RIFF/WAVE header
var ErrNotWAV = errors.New("not a valid wav file")

// WAVSource streams PCM out of a WAV container
type WAVSource struct {
	dec      *wav.Decoder
	closer   io.Closer
	format   audio.Format
	bitDepth int
	buf      *goaudio.IntBuffer
}

// NewWAV creates a WAV source. go-audio needs to seek, so plain readers
// are buffered in memory first.
func NewWAV(r io.Reader) (audio.Source, error) {
	var closer io.Closer
	if c, ok := r.(io.Closer); ok {
		closer = c
	}

	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to buffer wav: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}

	channels := int(dec.NumChans)
	return &WAVSource{
		dec:      dec,
		closer:   closer,
		format:   audio.Format{SampleRate: int(dec.SampleRate), Channels: channels},
		bitDepth: int(dec.BitDepth),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: channels, SampleRate: int(dec.SampleRate)},
		},
	}, nil
}

func (s *WAVSource) Format() audio.Format { return s.format }

func (s *WAVSource) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%s.format.Channels
	if want == 0 {
		return 0, nil
	}
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil {
		return 0, fmt.Errorf("wav decode error: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	for i := 0; i < n; i++ {
		dst[i] = audio.IntToFloat(s.buf.Data[i], s.bitDepth)
	}
	return n, nil
}

func (s *WAVSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
