// ABOUTME: Tests for the raw PCM source
// ABOUTME: Verifies sample conversion and partial frame handling
package decode

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/visual-lock/visuallock/pkg/audio"
)

func TestPCM16Source(t *testing.T) {
	var raw bytes.Buffer
	for _, s := range []int16{16384, -16384, 0, 32767} {
		binary.Write(&raw, binary.LittleEndian, s)
	}
	// Trailing odd byte forms no complete frame
	raw.WriteByte(0x01)

	src := NewPCM16(&raw, nil, audio.Format{SampleRate: 44100, Channels: 2})
	dst := make([]float32, 16)

	n, err := src.ReadSamples(dst)
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 samples, got %d", n)
	}
	if dst[0] != 0.5 || dst[1] != -0.5 || dst[2] != 0 {
		t.Errorf("unexpected samples: %v", dst[:n])
	}

	if _, err := src.ReadSamples(dst); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}
