// ABOUTME: Header injecting relay in front of the streaming API
// ABOUTME: Supports prefix style and endpoint query style requests
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/visual-lock/visuallock/internal/logger"
)

// Defaults for the relay
const (
	DefaultUpstreamURL = "https://api-v2.soundcloud.com"
	DefaultPrefix      = "/sc-api"
	QueryRoute         = "/api/proxy"
	DefaultTimeout     = 30 * time.Second
)

// Headers sent upstream on every request
const (
	HeaderOrigin    = "https://soundcloud.com"
	HeaderReferer   = "https://soundcloud.com/"
	HeaderUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// scBodyLimit is how much of an upstream error body is echoed back
const scBodyLimit = 500

// maxBodySize caps relayed responses
const maxBodySize = 64 << 20

// ProxyConfig configures the relay
type ProxyConfig struct {
	UpstreamURL string
	Prefix      string
	// WrapErrors replaces non-2xx bodies with a diagnostic JSON envelope
	WrapErrors bool
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Proxy relays GET requests to the upstream API
type Proxy struct {
	upstream   string
	prefix     string
	wrapErrors bool
	client     *http.Client
	timeout    time.Duration
}

type requestIDKey struct{}

// NewProxy creates the relay
func NewProxy(cfg ProxyConfig) *Proxy {
	p := &Proxy{
		upstream:   strings.TrimRight(cfg.UpstreamURL, "/"),
		prefix:     normalizePrefix(cfg.Prefix),
		wrapErrors: cfg.WrapErrors,
		client:     cfg.HTTPClient,
		timeout:    cfg.Timeout,
	}
	if p.upstream == "" {
		p.upstream = DefaultUpstreamURL
	}
	if p.client == nil {
		p.client = &http.Client{}
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	return p
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return DefaultPrefix
	}
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		return DefaultPrefix
	}
	return prefix
}

// Prefix returns the path prefix served by the relay
func (p *Proxy) Prefix() string {
	return p.prefix
}

// Router builds the gateway routes
func (p *Proxy) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(corsMiddleware)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	router.HandleFunc(QueryRoute, p.handleQueryStyle).Methods(http.MethodGet, http.MethodOptions)
	router.PathPrefix(p.prefix + "/").HandlerFunc(p.handlePrefixStyle).Methods(http.MethodGet, http.MethodOptions)

	return router
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// handlePrefixStyle serves <prefix>/<endpoint>?<query>
func (p *Proxy) handlePrefixStyle(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.Trim(strings.TrimPrefix(r.URL.EscapedPath(), p.prefix), "/")
	if endpoint == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Endpoint missing"})
		return
	}
	p.forward(w, r, endpoint, r.URL.RawQuery)
}

// handleQueryStyle serves /api/proxy?endpoint=<path>[&endpoint=<more>]&<query>
func (p *Proxy) handleQueryStyle(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	endpoint := strings.Trim(strings.Join(params["endpoint"], "/"), "/")
	if endpoint == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Endpoint missing"})
		return
	}
	params.Del("endpoint")
	p.forward(w, r, endpoint, params.Encode())
}

// TargetURL builds the upstream URL for an endpoint and encoded query
func (p *Proxy) TargetURL(endpoint, rawQuery string) string {
	target := p.upstream + "/" + strings.TrimLeft(endpoint, "/")
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

func (p *Proxy) forward(w http.ResponseWriter, r *http.Request, endpoint, rawQuery string) {
	target := p.TargetURL(endpoint, rawQuery)
	reqID := requestID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		p.internalError(w, reqID, err)
		return
	}
	req.Header.Set("Origin", HeaderOrigin)
	req.Header.Set("Referer", HeaderReferer)
	req.Header.Set("User-Agent", HeaderUserAgent)
	if isJSONEndpoint(endpoint) {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.internalError(w, reqID, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		p.internalError(w, reqID, err)
		return
	}

	logger.Debug("Relayed request",
		logger.String("request_id", reqID),
		logger.String("endpoint", endpoint),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", time.Since(start)))

	success := resp.StatusCode >= 200 && resp.StatusCode <= 299
	if !success && p.wrapErrors {
		logger.Warn("Upstream returned error",
			logger.String("request_id", reqID),
			logger.Int("status", resp.StatusCode),
			logger.String("target", redactTarget(target)))
		writeJSON(w, resp.StatusCode, map[string]any{
			"error":     "SoundCloud API Error",
			"status":    resp.StatusCode,
			"targetUrl": target,
			"scBody":    truncateRunes(string(body), scBodyLimit),
		})
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
}

func (p *Proxy) internalError(w http.ResponseWriter, reqID string, err error) {
	logger.Error("Proxy error", logger.String("request_id", reqID), logger.ErrorField(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "Internal Proxy Error",
		"details": err.Error(),
	})
}

// isJSONEndpoint reports whether the endpoint returns an API document
// rather than a playlist or media file.
func isJSONEndpoint(endpoint string) bool {
	switch strings.ToLower(path.Ext(endpoint)) {
	case "", ".json":
		return true
	default:
		return false
	}
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// redactTarget drops the credential from a logged URL
func redactTarget(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	if q.Has("client_id") {
		q.Set("client_id", "redacted")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", logger.ErrorField(fmt.Errorf("gateway: %w", err)))
	}
}
