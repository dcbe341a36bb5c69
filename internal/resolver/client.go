// ABOUTME: Multi-stage stream resolver talking to the proxy gateway
// ABOUTME: Resolves a track reference into a final playable media URI
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/internal/version"
)

// Defaults for the resolver client
const (
	DefaultUpstreamURL  = "https://api-v2.soundcloud.com"
	DefaultStageTimeout = 10 * time.Second
)

const (
	stageResolve = "resolve"
	stageTrack   = "track"
	stageStream  = "stream"
)

// maxBodySize caps JSON documents read from the gateway
const maxBodySize = 8 << 20

// Config holds resolver client settings
type Config struct {
	// BaseURL is the gateway root including its prefix, e.g. http://127.0.0.1:8927/sc-api
	BaseURL string
	// UpstreamURL is the origin rewritten to BaseURL in transcoding URLs
	UpstreamURL  string
	HTTPClient   *http.Client
	StageTimeout time.Duration
}

// Client resolves track references through the gateway
type Client struct {
	base     string
	upstream string
	http     *http.Client
	timeout  time.Duration
}

// NewClient creates a resolver client
func NewClient(cfg Config) *Client {
	c := &Client{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		upstream: strings.TrimRight(cfg.UpstreamURL, "/"),
		http:     cfg.HTTPClient,
		timeout:  cfg.StageTimeout,
	}
	if c.upstream == "" {
		c.upstream = DefaultUpstreamURL
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultStageTimeout
	}
	return c
}

// BaseURL returns the gateway root used by the client
func (c *Client) BaseURL() string {
	return c.base
}

// Resolve runs the resolve, playlist, format selection and final URI stages.
// Every call is independent and is never retried.
func (c *Client) Resolve(ctx context.Context, ref TrackReference, credential string) (PlayableMedia, error) {
	cleaned := ref.String()
	logger.Info("Resolving track reference", logger.String("ref", cleaned))

	q := url.Values{}
	q.Set("url", cleaned)
	q.Set("client_id", credential)

	var track resolvedTrack
	if err := c.getJSON(ctx, stageResolve, c.base+"/resolve?"+q.Encode(), &track); err != nil {
		return PlayableMedia{}, err
	}

	if track.Kind == "playlist" && len(track.Tracks) > 0 {
		first := track.Tracks[0]
		logger.Info("Playlist detected, using first track", logger.String("title", first.Title))
		if first.Media == nil && first.ID != 0 {
			q := url.Values{}
			q.Set("client_id", credential)
			endpoint := fmt.Sprintf("%s/tracks/%d?%s", c.base, first.ID, q.Encode())
			var full resolvedTrack
			if err := c.getJSON(ctx, stageTrack, endpoint, &full); err != nil {
				return PlayableMedia{}, err
			}
			first = full
		}
		track = first
	}

	chosen, ok := selectTranscoding(track.Media)
	if !ok {
		return PlayableMedia{}, &Error{Kind: KindNoStreamableMedia, Stage: stageResolve}
	}
	segmented := chosen.Format.Protocol == ProtocolHLS
	mediaURL := c.rewrite(chosen.URL, credential)

	var loc streamLocation
	if err := c.getJSON(ctx, stageStream, mediaURL, &loc); err != nil {
		return PlayableMedia{}, err
	}
	if loc.URL == "" {
		return PlayableMedia{}, &Error{Kind: KindNoStreamableMedia, Stage: stageStream}
	}

	logger.Info("Stream ready",
		logger.String("title", track.Title),
		logger.Bool("segmented", segmented))

	return PlayableMedia{
		URI:       loc.URL,
		Segmented: segmented,
		MimeType:  chosen.Format.MimeType,
		Title:     track.Title,
	}, nil
}

// selectTranscoding prefers HLS (audio/mpeg, then application/x-mpegURL, then
// any) and falls back to the first progressive transcoding.
func selectTranscoding(media *trackMedia) (transcoding, bool) {
	if media == nil {
		return transcoding{}, false
	}

	var anyHLS, progressive *transcoding
	var mpegURL *transcoding
	for i := range media.Transcodings {
		t := &media.Transcodings[i]
		if t.URL == "" {
			continue
		}
		switch t.Format.Protocol {
		case ProtocolHLS:
			if t.Format.MimeType == "audio/mpeg" {
				return *t, true
			}
			if mpegURL == nil && t.Format.MimeType == "application/x-mpegURL" {
				mpegURL = t
			}
			if anyHLS == nil {
				anyHLS = t
			}
		case ProtocolProgressive:
			if progressive == nil {
				progressive = t
			}
		}
	}

	for _, t := range []*transcoding{mpegURL, anyHLS, progressive} {
		if t != nil {
			return *t, true
		}
	}
	return transcoding{}, false
}

// rewrite points an upstream indirection URL at the gateway and appends the credential
func (c *Client) rewrite(raw, credential string) string {
	rewritten := raw
	if strings.HasPrefix(raw, c.upstream) {
		rewritten = c.base + strings.TrimPrefix(raw, c.upstream)
	}
	sep := "?"
	if strings.Contains(rewritten, "?") {
		sep = "&"
	}
	return rewritten + sep + "client_id=" + url.QueryEscape(credential)
}

func (c *Client) getJSON(ctx context.Context, stage, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return transportError(stage, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(stage, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		logger.Warn("Resolver stage failed",
			logger.String("stage", stage),
			logger.Int("status", resp.StatusCode))
		return statusError(stage, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return transportError(stage, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
