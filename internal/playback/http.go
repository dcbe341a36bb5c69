// ABOUTME: Progressive HTTP media sources
// ABOUTME: Picks a decoder from the content type, then the URL extension, then ffmpeg
package playback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/pkg/audio"
	"github.com/visual-lock/visuallock/pkg/audio/decode"
)

func (o *Opener) openProgressive(ctx context.Context, uri string) (audio.Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid media url: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch media: HTTP %d", resp.StatusCode)
	}

	format := decode.FormatFromContentType(resp.Header.Get("Content-Type"))
	if _, ok := o.registry.Get(format); !ok {
		format = decode.FormatFromPath(req.URL.Path)
	}
	if _, ok := o.registry.Get(format); !ok {
		resp.Body.Close()
		logger.Info("Unknown media type, using ffmpeg",
			logger.String("content_type", resp.Header.Get("Content-Type")))
		return decode.NewFFmpeg(ctx, uri, o.ffmpeg)
	}

	src, err := o.registry.Open(format, resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to decode media: %w", err)
	}
	logger.Info("Streaming progressive media", logger.String("format", format))
	return src, nil
}
