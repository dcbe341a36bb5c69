// ABOUTME: Ogg Vorbis audio decoder
// ABOUTME: Wraps jfreymuth/oggvorbis which already produces float samples
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
	"github.com/visual-lock/visuallock/pkg/audio"
)

// VorbisSource streams an Ogg Vorbis file
type VorbisSource struct {
	dec    *oggvorbis.Reader
	closer io.Closer
	format audio.Format
}

// NewVorbis creates a streaming Ogg Vorbis source
func NewVorbis(r io.Reader) (audio.Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ogg vorbis: %w", err)
	}

	var closer io.Closer
	if c, ok := r.(io.Closer); ok {
		closer = c
	}
	return &VorbisSource{
		dec:    dec,
		closer: closer,
		format: audio.Format{SampleRate: dec.SampleRate(), Channels: dec.Channels()},
	}, nil
}

func (s *VorbisSource) Format() audio.Format { return s.format }

func (s *VorbisSource) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%s.format.Channels
	if want == 0 {
		return 0, nil
	}
	n, err := s.dec.Read(dst[:want])
	if n > 0 {
		return n, nil
	}
	if err == nil {
		err = io.EOF
	}
	return 0, err
}

func (s *VorbisSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
