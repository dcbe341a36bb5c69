// ABOUTME: FLAC audio decoder
// ABOUTME: Streams FLAC frames from mewkiz/flac as interleaved float samples
package decode

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/visual-lock/visuallock/pkg/audio"
)

// FLACSource decodes FLAC frame by frame
type FLACSource struct {
	stream   *flac.Stream
	format   audio.Format
	bitDepth int
	pending  []float32
}

// NewFLAC creates a streaming FLAC source
func NewFLAC(r io.Reader) (audio.Source, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	return &FLACSource{
		stream: stream,
		format: audio.Format{
			SampleRate: int(info.SampleRate),
			Channels:   int(info.NChannels),
		},
		bitDepth: int(info.BitsPerSample),
	}, nil
}

func (s *FLACSource) Format() audio.Format { return s.format }

func (s *FLACSource) ReadSamples(dst []float32) (int, error) {
	for len(s.pending) == 0 {
		frame, err := s.stream.ParseNext()
		if err != nil {
			return 0, err
		}
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < s.format.Channels; ch++ {
				s.pending = append(s.pending, audio.IntToFloat(int(frame.Subframes[ch].Samples[i]), s.bitDepth))
			}
		}
	}

	n := copy(dst, s.pending)
	n -= n % s.format.Channels
	s.pending = s.pending[n:]
	return n, nil
}

func (s *FLACSource) Close() error {
	return s.stream.Close()
}
