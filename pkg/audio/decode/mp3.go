// ABOUTME: MP3 audio decoder
// ABOUTME: Streams MP3 through go-mp3, which always yields 16-bit stereo
package decode

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/visual-lock/visuallock/pkg/audio"
)

// NewMP3 creates a streaming MP3 source
func NewMP3(r io.Reader) (audio.Source, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	var closer io.Closer
	if c, ok := r.(io.Closer); ok {
		closer = c
	}
	return NewPCM16(dec, closer, audio.Format{SampleRate: dec.SampleRate(), Channels: 2}), nil
}
