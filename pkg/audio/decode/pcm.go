// ABOUTME: Signed 16-bit little-endian PCM source
// ABOUTME: Shared by byte-oriented decoders such as go-mp3 and ffmpeg pipes
package decode

import (
	"encoding/binary"
	"io"

	"github.com/visual-lock/visuallock/pkg/audio"
)

// PCM16Source reads raw s16le frames from an io.Reader
type PCM16Source struct {
	r      io.Reader
	closer io.Closer
	format audio.Format
	buf    []byte
}

// NewPCM16 wraps a raw PCM byte stream. closer may be nil.
func NewPCM16(r io.Reader, closer io.Closer, format audio.Format) *PCM16Source {
	return &PCM16Source{r: r, closer: closer, format: format}
}

func (s *PCM16Source) Format() audio.Format { return s.format }

func (s *PCM16Source) ReadSamples(dst []float32) (int, error) {
	frameBytes := 2 * s.format.Channels
	want := (len(dst) * 2 / frameBytes) * frameBytes
	if want == 0 {
		return 0, nil
	}
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}
	buf := s.buf[:want]

	n, err := io.ReadAtLeast(s.r, buf, frameBytes)
	// Drop a trailing partial frame
	n -= n % frameBytes
	if n == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}

	samples := n / 2
	for i := 0; i < samples; i++ {
		dst[i] = audio.Int16ToFloat(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}
	return samples, nil
}

func (s *PCM16Source) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
