// ABOUTME: Minimal HLS reader for segmented media
// ABOUTME: Concatenates MP3 segments natively and hands other codecs to ffmpeg
package playback

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/internal/resolver"
	"github.com/visual-lock/visuallock/pkg/audio"
	"github.com/visual-lock/visuallock/pkg/audio/decode"
)

// ErrEmptyPlaylist is returned for a playlist without segments
var ErrEmptyPlaylist = errors.New("playlist has no segments")

const maxPlaylistSize = 4 << 20

// Playlist is a parsed HLS playlist
type Playlist struct {
	// Variants lists stream URIs of a master playlist
	Variants []string
	// Segments lists segment URIs of a media playlist
	Segments []string
	// Encrypted is set when segments use EXT-X-KEY encryption
	Encrypted bool
}

// ParsePlaylist reads an M3U8 document, resolving URIs against base
func ParsePlaylist(r io.Reader, base *url.URL) (*Playlist, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxPlaylistSize)

	p := &Playlist{}
	first := true
	variantNext := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first {
			if line != "#EXTM3U" {
				return nil, fmt.Errorf("not an m3u8 playlist")
			}
			first = false
			continue
		}
		if strings.HasPrefix(line, "#") {
			switch {
			case strings.HasPrefix(line, "#EXT-X-STREAM-INF"):
				variantNext = true
			case strings.HasPrefix(line, "#EXT-X-KEY") && !strings.Contains(line, "METHOD=NONE"):
				p.Encrypted = true
			}
			continue
		}

		ref, err := url.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("bad playlist uri %q: %w", line, err)
		}
		abs := ref.String()
		if base != nil {
			abs = base.ResolveReference(ref).String()
		}
		if variantNext {
			p.Variants = append(p.Variants, abs)
			variantNext = false
		} else {
			p.Segments = append(p.Segments, abs)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if first {
		return nil, fmt.Errorf("not an m3u8 playlist")
	}
	return p, nil
}

func (o *Opener) fetchPlaylist(ctx context.Context, uri string) (*Playlist, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid playlist url: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch playlist: HTTP %d", resp.StatusCode)
	}
	return ParsePlaylist(io.LimitReader(resp.Body, maxPlaylistSize), req.URL)
}

// openSegmented plays an HLS stream. MP3 media playlists are decoded
// natively by joining their segments; everything else goes to ffmpeg.
func (o *Opener) openSegmented(ctx context.Context, media resolver.PlayableMedia) (audio.Source, error) {
	playlist, err := o.fetchPlaylist(ctx, media.URI)
	if err != nil {
		return nil, err
	}
	if len(playlist.Segments) == 0 && len(playlist.Variants) > 0 {
		playlist, err = o.fetchPlaylist(ctx, playlist.Variants[0])
		if err != nil {
			return nil, err
		}
	}
	if len(playlist.Segments) == 0 {
		return nil, ErrEmptyPlaylist
	}

	if playlist.Encrypted || !isMP3Playlist(media.MimeType, playlist.Segments) {
		logger.Info("Segmented media needs ffmpeg", logger.String("mime", media.MimeType))
		return decode.NewFFmpeg(ctx, media.URI, o.ffmpeg)
	}

	logger.Info("Streaming segmented media", logger.Int("segments", len(playlist.Segments)))
	reader := newSegmentReader(ctx, o.client, playlist.Segments)
	src, err := decode.NewMP3(reader)
	if err != nil {
		reader.Close()
		return nil, err
	}
	return src, nil
}

func isMP3Playlist(mime string, segments []string) bool {
	if strings.HasPrefix(strings.ToLower(mime), "audio/mpeg") {
		return true
	}
	return decode.FormatFromPath(segments[0]) == decode.FormatMP3
}

// segmentReader streams segment bodies back to back
type segmentReader struct {
	ctx      context.Context
	cancel   context.CancelFunc
	client   *http.Client
	segments []string
	next     int
	body     io.ReadCloser
}

func newSegmentReader(ctx context.Context, client *http.Client, segments []string) *segmentReader {
	ctx, cancel := context.WithCancel(ctx)
	return &segmentReader{ctx: ctx, cancel: cancel, client: client, segments: segments}
}

func (r *segmentReader) Read(p []byte) (int, error) {
	for {
		if r.body == nil {
			if r.next >= len(r.segments) {
				return 0, io.EOF
			}
			if err := r.openNext(); err != nil {
				return 0, err
			}
		}
		n, err := r.body.Read(p)
		if err == nil {
			return n, nil
		}
		r.body.Close()
		r.body = nil
		if err != io.EOF {
			return n, err
		}
		if n > 0 {
			return n, nil
		}
	}
}

func (r *segmentReader) openNext() error {
	uri := r.segments[r.next]
	r.next++

	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("invalid segment url: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch segment %d: %w", r.next-1, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return fmt.Errorf("failed to fetch segment %d: HTTP %d", r.next-1, resp.StatusCode)
	}
	r.body = resp.Body
	return nil
}

// Close cancels the in-flight segment request, which also releases its body.
// It may be called while a Read is blocked on another goroutine.
func (r *segmentReader) Close() error {
	r.cancel()
	return nil
}
