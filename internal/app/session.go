// ABOUTME: Visualizer session orchestration
// ABOUTME: Coordinates source selection, loading, playback state and the render loop
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/visual-lock/visuallock/internal/analyzer"
	"github.com/visual-lock/visuallock/internal/credential"
	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/internal/render"
	"github.com/visual-lock/visuallock/internal/resolver"
	"github.com/visual-lock/visuallock/internal/ui"
)

// ErrLoadInProgress rejects a load while another one is resolving
var ErrLoadInProgress = errors.New("a load is already in progress")

// ErrNothingLoaded is returned by Play in file or url mode before a load
var ErrNothingLoaded = errors.New("load a file or URL first")

// Graph is the part of the analyzer the session drives
type Graph interface {
	Attach(kind analyzer.SourceKind, open analyzer.Opener) error
	Detach()
	SetVolume(v float64)
}

// Loop is the part of the render controller the session drives
type Loop interface {
	Start()
	Stop()
	State() render.State
	SourceAttached()
	SetShift(v float64) bool
	Resize(width, height int)
}

// Sources opens playback sources
type Sources interface {
	Microphone() analyzer.Opener
	File(path string, loop bool) analyzer.Opener
	Media(ctx context.Context, media resolver.PlayableMedia) analyzer.Opener
}

// Resolver turns a track reference into playable media
type Resolver interface {
	Resolve(ctx context.Context, ref resolver.TrackReference, credential string) (resolver.PlayableMedia, error)
}

// Sizer receives the drawable size reported by the UI
type Sizer interface {
	Set(width, height int)
}

// Config wires a session
type Config struct {
	Graph    Graph
	Loop     Loop
	Sources  Sources
	Resolver Resolver
	Chain    *credential.Chain
	Recovery *credential.Recovery
	Window   Sizer
	// Notify receives every status change
	Notify func(ui.StatusMsg)
	Volume float64
}

// Session is the visualizer's control surface
type Session struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	mode    ui.SourceMode
	kind    analyzer.SourceKind
	opener  analyzer.Opener
	title   string
	playing bool
	loading bool
	volume  float64
	shift   float64
}

// NewSession creates a session in mic mode, STANDBY
func NewSession(cfg Config) *Session {
	if cfg.Notify == nil {
		cfg.Notify = func(ui.StatusMsg) {}
	}
	if cfg.Volume <= 0 || cfg.Volume > 1 {
		cfg.Volume = 0.5
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		mode:   ui.ModeMic,
		kind:   analyzer.SourceCapture,
		volume: cfg.Volume,
	}
	cfg.Graph.SetVolume(s.volume)
	return s
}

// PresetChanged forwards preset notifications from the render loop
func (s *Session) PresetChanged(name string) {
	s.cfg.Notify(ui.StatusMsg{Preset: name})
}

// SourceEnded is called by the graph when a source runs dry
func (s *Session) SourceEnded(kind analyzer.SourceKind, err error) {
	s.mu.Lock()
	wasPlaying := s.playing
	s.playing = false
	s.mu.Unlock()
	if !wasPlaying {
		return
	}
	s.cfg.Loop.Stop()
	msg := "Playback ended"
	if err != nil && !errors.Is(err, io.EOF) {
		msg = "Playback error: " + err.Error()
		logger.Warn("Source ended with error", logger.String("kind", kind.String()), logger.ErrorField(err))
	}
	s.status(ui.StatusMsg{Active: boolPtr(false), Status: &msg})
}

// Playing reports ACTIVE
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Mode returns the current source mode
func (s *Session) Mode() ui.SourceMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Volume returns the current volume
func (s *Session) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// TogglePlay switches between ACTIVE and STANDBY
func (s *Session) TogglePlay() error {
	if s.Playing() {
		s.Pause()
		return nil
	}
	return s.Play()
}

// Play attaches the current source and starts the render loop
func (s *Session) Play() error {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return nil
	}
	if s.mode == ui.ModeMic && s.opener == nil {
		s.opener = s.cfg.Sources.Microphone()
		s.kind = analyzer.SourceCapture
	}
	opener, kind, volume := s.opener, s.kind, s.volume
	s.mu.Unlock()

	if opener == nil {
		s.statusText(ErrNothingLoaded.Error())
		return ErrNothingLoaded
	}

	if err := s.cfg.Graph.Attach(kind, opener); err != nil {
		s.statusText("Audio error: " + err.Error())
		return err
	}
	// The audio context only exists after the first attach
	s.cfg.Graph.SetVolume(volume)
	s.cfg.Loop.SourceAttached()
	s.cfg.Loop.Start()

	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()

	s.status(ui.StatusMsg{Active: boolPtr(true), Status: strPtr("")})
	return nil
}

// Pause stops the render loop and disconnects the source
func (s *Session) Pause() {
	s.mu.Lock()
	wasPlaying := s.playing
	s.playing = false
	s.mu.Unlock()
	if !wasPlaying {
		return
	}
	s.cfg.Loop.Stop()
	s.cfg.Graph.Detach()
	s.status(ui.StatusMsg{Active: boolPtr(false)})
}

// SetMode switches the source mode; a playing source is paused first
func (s *Session) SetMode(mode ui.SourceMode) {
	s.mu.Lock()
	if s.loading || mode == s.mode {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.Pause()

	s.mu.Lock()
	s.mode = mode
	s.opener = nil
	s.title = ""
	s.mu.Unlock()
	s.status(ui.StatusMsg{Mode: mode, Status: strPtr("")})
}

// Load prepares a file path or track URL for the current mode and leaves
// playback paused for the user to start
func (s *Session) Load(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrLoadInProgress
	}
	previous := s.mode
	mode := previous
	if mode == ui.ModeMic {
		mode = ui.ModeURL
		if isLocalPath(input) {
			mode = ui.ModeFile
		}
	}
	s.loading = true
	s.mu.Unlock()

	s.status(ui.StatusMsg{Loading: boolPtr(true), Mode: mode})
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.status(ui.StatusMsg{Loading: boolPtr(false)})
	}()

	s.Pause()

	var (
		opener analyzer.Opener
		title  string
		err    error
	)
	switch mode {
	case ui.ModeFile:
		opener, title, err = s.loadFile(input)
	default:
		opener, title, err = s.loadURL(ctx, input)
	}
	if err != nil {
		text := loadErrorText(mode, err)
		s.status(ui.StatusMsg{Mode: previous, Status: &text})
		return err
	}

	s.mu.Lock()
	s.mode = mode
	s.kind = analyzer.SourceMedia
	s.opener = opener
	s.title = title
	s.mu.Unlock()

	s.statusText(fmt.Sprintf("Ready: %s (press space to start)", title))
	logger.Info("Source loaded", logger.String("mode", string(mode)), logger.String("title", title))
	return nil
}

func (s *Session) loadFile(p string) (analyzer.Opener, string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, "", err
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("%s is a directory", p)
	}
	return s.cfg.Sources.File(p, true), filepath.Base(p), nil
}

func (s *Session) loadURL(ctx context.Context, raw string) (analyzer.Opener, string, error) {
	if !isTrackPage(raw) {
		media := directMedia(raw)
		return s.cfg.Sources.Media(s.ctx, media), media.Title, nil
	}

	cred := s.cfg.Chain.Current(ctx)
	logger.Debug("Resolving track", logger.String("client_id", prefix(cred, 6)))
	media, err := s.cfg.Resolver.Resolve(ctx, resolver.NewReference(raw), cred)
	if err != nil {
		if s.cfg.Recovery != nil {
			err = s.cfg.Recovery.Handle(ctx, err, cred)
		}
		return nil, "", err
	}
	title := media.Title
	if title == "" {
		title = resolver.CleanReference(raw)
	}
	return s.cfg.Sources.Media(s.ctx, media), title, nil
}

// SetVolume sets the audible gain in [0, 1]
func (s *Session) SetVolume(v float64) {
	v = clamp01(v)
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	s.cfg.Graph.SetVolume(v)
}

// SetShift moves the preset shift slider
func (s *Session) SetShift(v float64) {
	v = clamp01(v)
	s.mu.Lock()
	s.shift = v
	s.mu.Unlock()
	s.cfg.Loop.SetShift(v)
}

// Resize records the drawable size and resizes the engines
func (s *Session) Resize(width, height int) {
	if s.cfg.Window != nil {
		s.cfg.Window.Set(width, height)
	}
	s.cfg.Loop.Resize(width, height)
}

// Close stops playback and cancels in-flight media requests
func (s *Session) Close() {
	s.Pause()
	s.cancel()
}

func (s *Session) status(msg ui.StatusMsg) {
	s.cfg.Notify(msg)
}

func (s *Session) statusText(text string) {
	s.cfg.Notify(ui.StatusMsg{Status: &text})
}

// loadErrorText renders a load failure as the status line
func loadErrorText(mode ui.SourceMode, err error) string {
	if mode == ui.ModeFile {
		return "File Error: " + err.Error()
	}
	return "SoundCloud Error: " + err.Error()
}

// isTrackPage reports whether raw needs resolving rather than direct playback
func isTrackPage(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// Bare references like "artist/track" go through the resolver
		return true
	}
	host := strings.ToLower(u.Hostname())
	return host == "soundcloud.com" || strings.HasSuffix(host, ".soundcloud.com")
}

// directMedia treats a non-track URL as a direct audio link
func directMedia(raw string) resolver.PlayableMedia {
	media := resolver.PlayableMedia{URI: raw, Title: raw}
	if u, err := url.Parse(raw); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			media.Title = base
		}
		media.Segmented = strings.EqualFold(path.Ext(u.Path), ".m3u8")
	}
	return media
}

func isLocalPath(s string) bool {
	if strings.Contains(s, "://") {
		return false
	}
	_, err := os.Stat(s)
	return err == nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }
