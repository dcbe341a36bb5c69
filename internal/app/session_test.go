// ABOUTME: Tests for session orchestration
// ABOUTME: Drives the session with fake graph, loop, sources and resolver
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/visual-lock/visuallock/internal/analyzer"
	"github.com/visual-lock/visuallock/internal/credential"
	"github.com/visual-lock/visuallock/internal/render"
	"github.com/visual-lock/visuallock/internal/resolver"
	"github.com/visual-lock/visuallock/internal/ui"
	"github.com/visual-lock/visuallock/pkg/audio"
)

type fakeGraph struct {
	mu        sync.Mutex
	attached  []analyzer.SourceKind
	detaches  int
	volume    float64
	attachErr error
}

func (g *fakeGraph) Attach(kind analyzer.SourceKind, open analyzer.Opener) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.attachErr != nil {
		return g.attachErr
	}
	g.attached = append(g.attached, kind)
	return nil
}

func (g *fakeGraph) Detach() {
	g.mu.Lock()
	g.detaches++
	g.mu.Unlock()
}

func (g *fakeGraph) SetVolume(v float64) {
	g.mu.Lock()
	g.volume = v
	g.mu.Unlock()
}

type fakeLoop struct {
	mu       sync.Mutex
	state    render.State
	starts   int
	stops    int
	attached int
	shifts   []float64
	sizes    [][2]int
}

func (l *fakeLoop) Start() {
	l.mu.Lock()
	l.starts++
	l.state = render.Running
	l.mu.Unlock()
}

func (l *fakeLoop) Stop() {
	l.mu.Lock()
	l.stops++
	l.state = render.Idle
	l.mu.Unlock()
}

func (l *fakeLoop) State() render.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *fakeLoop) SourceAttached() {
	l.mu.Lock()
	l.attached++
	l.mu.Unlock()
}

func (l *fakeLoop) SetShift(v float64) bool {
	l.mu.Lock()
	l.shifts = append(l.shifts, v)
	l.mu.Unlock()
	return v > 0.05
}

func (l *fakeLoop) Resize(width, height int) {
	l.mu.Lock()
	l.sizes = append(l.sizes, [2]int{width, height})
	l.mu.Unlock()
}

type fakeSources struct {
	mu    sync.Mutex
	files []string
	media []resolver.PlayableMedia
	mics  int
}

func nopOpener() (audio.Source, error) { return nil, io.EOF }

func (s *fakeSources) Microphone() analyzer.Opener {
	s.mu.Lock()
	s.mics++
	s.mu.Unlock()
	return nopOpener
}

func (s *fakeSources) File(path string, loop bool) analyzer.Opener {
	s.mu.Lock()
	s.files = append(s.files, path)
	s.mu.Unlock()
	return nopOpener
}

func (s *fakeSources) Media(ctx context.Context, media resolver.PlayableMedia) analyzer.Opener {
	s.mu.Lock()
	s.media = append(s.media, media)
	s.mu.Unlock()
	return nopOpener
}

type resolveCall struct {
	ref        string
	credential string
}

type fakeResolver struct {
	mu      sync.Mutex
	calls   []resolveCall
	resolve func(ctx context.Context, ref resolver.TrackReference, cred string) (resolver.PlayableMedia, error)
}

func (r *fakeResolver) Resolve(ctx context.Context, ref resolver.TrackReference, cred string) (resolver.PlayableMedia, error) {
	r.mu.Lock()
	r.calls = append(r.calls, resolveCall{ref: ref.String(), credential: cred})
	r.mu.Unlock()
	return r.resolve(ctx, ref, cred)
}

type recorder struct {
	mu   sync.Mutex
	msgs []ui.StatusMsg
}

func (r *recorder) notify(msg ui.StatusMsg) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

// lastStatus is the most recent status line
func (r *recorder) lastStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Status != nil {
			return *r.msgs[i].Status
		}
	}
	return ""
}

func (r *recorder) lastActive() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Active != nil {
			return *r.msgs[i].Active, true
		}
	}
	return false, false
}

type harness struct {
	session  *Session
	graph    *fakeGraph
	loop     *fakeLoop
	sources  *fakeSources
	resolver *fakeResolver
	store    *credential.MemoryStore
	status   *recorder
}

func newHarness(t *testing.T, prompt credential.Prompter) *harness {
	t.Helper()
	res := &fakeResolver{resolve: func(ctx context.Context, ref resolver.TrackReference, cred string) (resolver.PlayableMedia, error) {
		return resolver.PlayableMedia{URI: "https://cdn.example/a.mp3", Title: "Track A"}, nil
	}}
	h := &harness{
		graph:    &fakeGraph{},
		loop:     &fakeLoop{},
		sources:  &fakeSources{},
		resolver: res,
		store:    &credential.MemoryStore{},
		status:   &recorder{},
	}
	var recovery *credential.Recovery
	if prompt != nil {
		recovery = credential.NewRecovery(h.store, prompt)
	}
	h.session = NewSession(Config{
		Graph:    h.graph,
		Loop:     h.loop,
		Sources:  h.sources,
		Resolver: h.resolver,
		Chain:    credential.NewChain(h.store, "env-id"),
		Recovery: recovery,
		Notify:   h.status.notify,
	})
	t.Cleanup(h.session.Close)
	return h
}

func TestPlayMicrophone(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.session.TogglePlay(); err != nil {
		t.Fatalf("TogglePlay: %v", err)
	}
	if !h.session.Playing() {
		t.Fatal("expected ACTIVE")
	}
	if len(h.graph.attached) != 1 || h.graph.attached[0] != analyzer.SourceCapture {
		t.Errorf("attached = %v, want one capture source", h.graph.attached)
	}
	if h.loop.starts != 1 || h.loop.attached != 1 {
		t.Errorf("loop starts = %d, attached = %d", h.loop.starts, h.loop.attached)
	}
	if h.graph.volume != 0.5 {
		t.Errorf("volume = %v, want default 0.5", h.graph.volume)
	}
	if active, ok := h.status.lastActive(); !ok || !active {
		t.Error("expected ACTIVE status")
	}

	if err := h.session.TogglePlay(); err != nil {
		t.Fatalf("second TogglePlay: %v", err)
	}
	if h.session.Playing() || h.loop.stops != 1 || h.graph.detaches != 1 {
		t.Errorf("pause: playing=%v stops=%d detaches=%d", h.session.Playing(), h.loop.stops, h.graph.detaches)
	}
	if active, _ := h.status.lastActive(); active {
		t.Error("expected STANDBY status")
	}
}

func TestPlayAttachFailureStaysStandby(t *testing.T) {
	h := newHarness(t, nil)
	h.graph.attachErr = &analyzer.AudioError{Op: "open capture", Err: errors.New("permission denied")}

	if err := h.session.Play(); err == nil {
		t.Fatal("expected attach error")
	}
	if h.session.Playing() || h.loop.starts != 0 {
		t.Error("failed attach must not start the loop")
	}
	if !strings.HasPrefix(h.status.lastStatus(), "Audio error:") {
		t.Errorf("status = %q", h.status.lastStatus())
	}
}

func TestPlayNeedsLoadOutsideMicMode(t *testing.T) {
	h := newHarness(t, nil)
	h.session.SetMode(ui.ModeURL)

	if err := h.session.Play(); !errors.Is(err, ErrNothingLoaded) {
		t.Errorf("Play = %v, want ErrNothingLoaded", err)
	}
	if len(h.graph.attached) != 0 {
		t.Error("nothing should be attached")
	}
}

func TestLoadURLLeavesPaused(t *testing.T) {
	h := newHarness(t, nil)
	h.session.Play()
	h.session.SetMode(ui.ModeURL)

	if err := h.session.Load(context.Background(), "https://soundcloud.com/artist/track?si=abc"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.session.Playing() {
		t.Error("load must leave playback paused")
	}
	if len(h.resolver.calls) != 1 || h.resolver.calls[0].credential != "env-id" {
		t.Fatalf("resolver calls = %+v", h.resolver.calls)
	}
	if len(h.sources.media) != 1 || h.sources.media[0].URI != "https://cdn.example/a.mp3" {
		t.Errorf("media = %+v", h.sources.media)
	}
	if got := h.status.lastStatus(); !strings.Contains(got, "Track A") {
		t.Errorf("status = %q", got)
	}

	if err := h.session.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if last := h.graph.attached[len(h.graph.attached)-1]; last != analyzer.SourceMedia {
		t.Errorf("attached %v, want media", last)
	}
}

func TestLoadRejectsConcurrentLoads(t *testing.T) {
	h := newHarness(t, nil)
	h.session.SetMode(ui.ModeURL)

	release := make(chan struct{})
	entered := make(chan struct{})
	h.resolver.resolve = func(ctx context.Context, ref resolver.TrackReference, cred string) (resolver.PlayableMedia, error) {
		close(entered)
		<-release
		return resolver.PlayableMedia{URI: "https://cdn.example/x.mp3"}, nil
	}

	done := make(chan error, 1)
	go func() { done <- h.session.Load(context.Background(), "https://soundcloud.com/a/b") }()
	<-entered

	if err := h.session.Load(context.Background(), "https://soundcloud.com/c/d"); !errors.Is(err, ErrLoadInProgress) {
		t.Errorf("second Load = %v, want ErrLoadInProgress", err)
	}
	h.session.SetMode(ui.ModeMic)
	if h.session.Mode() != ui.ModeURL {
		t.Error("mode changed during a load")
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first Load: %v", err)
	}
}

func TestLoadAuthDeniedRecovery(t *testing.T) {
	var prompted []string
	h := newHarness(t, credential.PrompterFunc(func(ctx context.Context, message, current string) (string, error) {
		prompted = append(prompted, current)
		return "fresh-id", nil
	}))
	h.session.SetMode(ui.ModeURL)
	h.resolver.resolve = func(ctx context.Context, ref resolver.TrackReference, cred string) (resolver.PlayableMedia, error) {
		if cred != "fresh-id" {
			return resolver.PlayableMedia{}, &resolver.Error{Kind: resolver.KindAuthDenied, Status: 403}
		}
		return resolver.PlayableMedia{URI: "https://cdn.example/ok.mp3", Title: "OK"}, nil
	}

	err := h.session.Load(context.Background(), "https://soundcloud.com/a/b")
	if !errors.Is(err, credential.ErrRetryRequired) {
		t.Fatalf("Load = %v, want ErrRetryRequired", err)
	}
	if len(prompted) != 1 || prompted[0] != "env-id" {
		t.Errorf("prompted with %v", prompted)
	}
	if got := h.status.lastStatus(); got != "SoundCloud Error: "+credential.ErrRetryRequired.Error() {
		t.Errorf("status = %q", got)
	}

	// No automatic retry; the user loads again
	if len(h.resolver.calls) != 1 {
		t.Errorf("resolver called %d times", len(h.resolver.calls))
	}
	if err := h.session.Load(context.Background(), "https://soundcloud.com/a/b"); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if h.resolver.calls[1].credential != "fresh-id" {
		t.Errorf("second load used %q", h.resolver.calls[1].credential)
	}
}

func TestLoadErrorsBecomeStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.session.SetMode(ui.ModeURL)
	h.resolver.resolve = func(ctx context.Context, ref resolver.TrackReference, cred string) (resolver.PlayableMedia, error) {
		return resolver.PlayableMedia{}, &resolver.Error{Kind: resolver.KindNotFound, Status: 404}
	}

	if err := h.session.Load(context.Background(), "https://soundcloud.com/gone"); !errors.Is(err, resolver.ErrNotFound) {
		t.Fatalf("Load = %v", err)
	}
	if got := h.status.lastStatus(); got != "SoundCloud Error: Track not found." {
		t.Errorf("status = %q", got)
	}
}

func TestLoadDirectURL(t *testing.T) {
	h := newHarness(t, nil)
	h.session.SetMode(ui.ModeURL)

	if err := h.session.Load(context.Background(), "https://radio.example/live/stream.m3u8"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(h.resolver.calls) != 0 {
		t.Error("direct links must not be resolved")
	}
	m := h.sources.media[0]
	if !m.Segmented || m.URI != "https://radio.example/live/stream.m3u8" || m.Title != "stream.m3u8" {
		t.Errorf("media = %+v", m)
	}
}

func TestLoadFile(t *testing.T) {
	h := newHarness(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "song.flac")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// From mic mode an existing path is taken as a file
	if err := h.session.Load(context.Background(), path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.session.Mode() != ui.ModeFile {
		t.Errorf("mode = %s, want file", h.session.Mode())
	}
	if len(h.sources.files) != 1 || h.sources.files[0] != path {
		t.Errorf("files = %v", h.sources.files)
	}

	h.session.SetMode(ui.ModeFile)
	err := h.session.Load(context.Background(), filepath.Join(dir, "missing.mp3"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if got := h.status.lastStatus(); !strings.HasPrefix(got, "File Error:") {
		t.Errorf("status = %q", got)
	}
	if err := h.session.Load(context.Background(), dir); err == nil {
		t.Error("expected error for directory")
	}
}

func TestSetModePausesPlayback(t *testing.T) {
	h := newHarness(t, nil)
	h.session.Play()
	h.session.SetMode(ui.ModeFile)

	if h.session.Playing() {
		t.Error("mode switch must pause")
	}
	if h.session.Mode() != ui.ModeFile {
		t.Errorf("mode = %s", h.session.Mode())
	}
	if err := h.session.Play(); !errors.Is(err, ErrNothingLoaded) {
		t.Errorf("Play after mode switch = %v", err)
	}
}

func TestSourceEnded(t *testing.T) {
	h := newHarness(t, nil)
	h.session.Play()

	h.session.SourceEnded(analyzer.SourceMedia, io.EOF)
	if h.session.Playing() || h.loop.stops != 1 {
		t.Errorf("playing=%v stops=%d", h.session.Playing(), h.loop.stops)
	}
	if got := h.status.lastStatus(); got != "Playback ended" {
		t.Errorf("status = %q", got)
	}

	// A second end while idle is ignored
	h.session.SourceEnded(analyzer.SourceMedia, errors.New("late"))
	if h.loop.stops != 1 {
		t.Error("ended while idle should not stop again")
	}
}

func TestSlidersClamp(t *testing.T) {
	h := newHarness(t, nil)

	h.session.SetVolume(1.7)
	if h.graph.volume != 1 || h.session.Volume() != 1 {
		t.Errorf("volume = %v", h.graph.volume)
	}
	h.session.SetVolume(-1)
	if h.graph.volume != 0 {
		t.Errorf("volume = %v", h.graph.volume)
	}

	h.session.SetShift(0.06)
	h.session.SetShift(2)
	if len(h.loop.shifts) != 2 || h.loop.shifts[0] != 0.06 || h.loop.shifts[1] != 1 {
		t.Errorf("shifts = %v", h.loop.shifts)
	}
}

func TestIsTrackPage(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://soundcloud.com/artist/track", true},
		{"https://m.soundcloud.com/artist/track", true},
		{"artist/track", true},
		{"https://cdn.example/file.mp3", false},
		{"https://notsoundcloud.com/x", false},
	}
	for _, tt := range tests {
		if got := isTrackPage(tt.in); got != tt.want {
			t.Errorf("isTrackPage(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDispatchWithCredentialPrompt(t *testing.T) {
	prompts := make(chan tea.Msg, 1)
	bridge := NewPromptBridge(func(msg tea.Msg) { prompts <- msg })
	h := newHarness(t, bridge)
	h.resolver.resolve = func(ctx context.Context, ref resolver.TrackReference, cred string) (resolver.PlayableMedia, error) {
		return resolver.PlayableMedia{}, &resolver.Error{Kind: resolver.KindAuthDenied, Status: 401}
	}

	ctrl := ui.NewControls()
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		h.session.Dispatch(ctx, ctrl, bridge)
		close(finished)
	}()

	ctrl.Commands <- ui.Command{Kind: ui.CmdSourceMode, Mode: ui.ModeURL}
	ctrl.Commands <- ui.Command{Kind: ui.CmdVolume, Value: 0.8}
	ctrl.Commands <- ui.Command{Kind: ui.CmdResize, Width: 90, Height: 20}
	ctrl.Commands <- ui.Command{Kind: ui.CmdLoad, Text: "https://soundcloud.com/a/b"}

	select {
	case msg := <-prompts:
		p, ok := msg.(ui.CredentialPromptMsg)
		if !ok || p.Current != "env-id" || p.Message != credential.PromptMessage {
			t.Errorf("prompt = %#v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no credential prompt")
	}
	ctrl.Commands <- ui.Command{Kind: ui.CmdCredential, Text: "typed-id"}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if v, _ := h.store.Load(context.Background()); v == "typed-id" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("credential never saved")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-finished

	if h.session.Mode() != ui.ModeURL || h.session.Volume() != 0.8 {
		t.Errorf("mode=%s volume=%v", h.session.Mode(), h.session.Volume())
	}
	if len(h.loop.sizes) != 1 || h.loop.sizes[0] != [2]int{90, 20} {
		t.Errorf("sizes = %v", h.loop.sizes)
	}
}

func TestPromptBridgeCancel(t *testing.T) {
	var bridge *PromptBridge
	bridge = NewPromptBridge(func(tea.Msg) {
		go bridge.Answer("typed", true)
	})
	// A stale answer from an abandoned prompt is discarded
	bridge.Answer("stale", false)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	answer, err := bridge.PromptCredential(ctx, "msg", "cur")
	if err != nil || answer != "" {
		t.Errorf("PromptCredential = %q, %v", answer, err)
	}
}

func TestPromptBridgeContextEnds(t *testing.T) {
	bridge := NewPromptBridge(func(tea.Msg) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := bridge.PromptCredential(ctx, "msg", "cur"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
