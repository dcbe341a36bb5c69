// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Uses the libopusfile stream reader, which decodes at 48kHz
package decode

import (
	"fmt"
	"io"

	"github.com/visual-lock/visuallock/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

const opusSampleRate = 48000

// OpusSource streams an Ogg Opus file. The stream reader cannot report the
// channel count, so streams are assumed to be stereo.
type OpusSource struct {
	stream *opus.Stream
	closer io.Closer
}

// NewOpus creates a streaming Ogg Opus source
func NewOpus(r io.Reader) (audio.Source, error) {
	stream, err := opus.NewStream(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open opus stream: %w", err)
	}

	var closer io.Closer
	if c, ok := r.(io.Closer); ok {
		closer = c
	}
	return &OpusSource{stream: stream, closer: closer}, nil
}

func (s *OpusSource) Format() audio.Format {
	return audio.Format{SampleRate: opusSampleRate, Channels: 2}
}

func (s *OpusSource) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%2
	if want == 0 {
		return 0, nil
	}

	frames, err := s.stream.ReadFloat32(dst[:want])
	if err != nil {
		return 0, err
	}
	if frames == 0 {
		return 0, io.EOF
	}
	return frames * 2, nil
}

func (s *OpusSource) Close() error {
	err := s.stream.Close()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
