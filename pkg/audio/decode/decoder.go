// ABOUTME: Decoder interface definition and format registry
// ABOUTME: Maps file extensions and content types to streaming decoders
package decode

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/visual-lock/visuallock/pkg/audio"
)

// Format keys understood by the default registry
const (
	FormatMP3    = "mp3"
	FormatFLAC   = "flac"
	FormatWAV    = "wav"
	FormatVorbis = "ogg"
	FormatOpus   = "opus"
)

// ErrUnknownFormat is returned when no decoder is registered for a format
var ErrUnknownFormat = errors.New("unknown audio format")

// Decoder opens a streaming source over encoded audio
type Decoder interface {
	Decode(r io.Reader) (audio.Source, error)
}

// DecoderFunc adapts a function to the Decoder interface
type DecoderFunc func(r io.Reader) (audio.Source, error)

func (f DecoderFunc) Decode(r io.Reader) (audio.Source, error) { return f(r) }

// Registry holds decoders keyed by format
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register adds or replaces the decoder for a format
func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[strings.ToLower(format)] = d
}

// Get looks up a decoder
func (r *Registry) Get(format string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[strings.ToLower(format)]
	return d, ok
}

// Formats lists registered format keys in sorted order
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decoders))
	for k := range r.decoders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open decodes rd with the decoder registered for format
func (r *Registry) Open(format string, rd io.Reader) (audio.Source, error) {
	d, ok := r.Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return d.Decode(rd)
}

// Default carries every built-in decoder
var Default = func() *Registry {
	r := NewRegistry()
	r.Register(FormatMP3, DecoderFunc(NewMP3))
	r.Register(FormatFLAC, DecoderFunc(NewFLAC))
	r.Register(FormatWAV, DecoderFunc(NewWAV))
	r.Register(FormatVorbis, DecoderFunc(NewVorbis))
	r.Register(FormatOpus, DecoderFunc(NewOpus))
	return r
}()

// FormatFromPath guesses the format key from a file name or URL path
func FormatFromPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")); ext {
	case "mp3", "mpga":
		return FormatMP3
	case "flac":
		return FormatFLAC
	case "wav", "wave":
		return FormatWAV
	case "ogg", "oga":
		return FormatVorbis
	case "opus":
		return FormatOpus
	default:
		return ext
	}
}

// FormatFromContentType maps an HTTP Content-Type to a format key
func FormatFromContentType(contentType string) string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "audio/mpeg", "audio/mp3", "audio/mpeg3":
		return FormatMP3
	case "audio/flac", "audio/x-flac":
		return FormatFLAC
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return FormatWAV
	case "audio/opus":
		return FormatOpus
	case "audio/ogg", "application/ogg":
		if strings.Contains(params["codecs"], "opus") {
			return FormatOpus
		}
		return FormatVorbis
	default:
		return ""
	}
}
