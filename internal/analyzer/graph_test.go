// ABOUTME: Tests for the audio graph
// ABOUTME: Uses synthetic sources and a silent context to check routing and readiness
package analyzer

import (
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/visual-lock/visuallock/pkg/audio"
)

// toneSource emits an endless sine until closed
type toneSource struct {
	mu     sync.Mutex
	phase  float64
	freq   float64
	closed atomic.Bool
}

func (s *toneSource) Format() audio.Format { return audio.Format{SampleRate: 44100, Channels: 1} }

func (s *toneSource) ReadSamples(dst []float32) (int, error) {
	if s.closed.Load() {
		return 0, io.EOF
	}
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range dst {
		dst[i] = float32(0.8 * math.Sin(s.phase))
		s.phase += 2 * math.Pi * s.freq / 44100
	}
	return len(dst), nil
}

func (s *toneSource) Close() error {
	s.closed.Store(true)
	return nil
}

func silentGraph() *Graph {
	return NewGraph(Config{})
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTickBeforeAttachReturnsZero(t *testing.T) {
	g := silentGraph()
	if g.Ready() {
		t.Fatal("new graph should not be ready")
	}
	if b := g.Tick(); b != (audio.BandEnergies{}) {
		t.Errorf("expected zero bands, got %+v", b)
	}
}

func TestAttachToneRaisesBands(t *testing.T) {
	g := silentGraph()
	defer g.Close()

	src := &toneSource{freq: 100}
	if err := g.Attach(SourceCapture, func() (audio.Source, error) { return src, nil }); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if !g.Ready() {
		t.Fatal("graph should be ready after attach")
	}

	waitUntil(t, func() bool {
		b := g.Tick()
		return b.Bass > 0.05
	})

	b := g.Bands()
	for i, v := range b.Slice() {
		if v < 0 || v > 1 {
			t.Errorf("band %d out of range: %v", i, v)
		}
	}
	if b.Bass <= b.High {
		t.Errorf("a 100Hz tone should favour bass over high: %+v", b)
	}
}

func TestSwitchingKeepsSingleConnection(t *testing.T) {
	g := silentGraph()
	defer g.Close()

	first := &toneSource{freq: 100}
	second := &toneSource{freq: 5000}

	if err := g.Attach(SourceCapture, func() (audio.Source, error) { return first, nil }); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if g.Connected() != 1 {
		t.Fatalf("expected 1 connection, got %d", g.Connected())
	}

	if err := g.Attach(SourceMedia, func() (audio.Source, error) {
		if g.Connected() != 0 {
			t.Errorf("previous source still connected while opening the next: %d", g.Connected())
		}
		return second, nil
	}); err != nil {
		t.Fatalf("second attach: %v", err)
	}

	if g.Connected() != 1 {
		t.Errorf("expected 1 connection after switch, got %d", g.Connected())
	}
	if !first.closed.Load() {
		t.Error("previous source should be closed on switch")
	}
	if second.closed.Load() {
		t.Error("new source should stay open")
	}
}

func TestOpenFailureLeavesGraphNotReady(t *testing.T) {
	g := silentGraph()
	defer g.Close()

	src := &toneSource{freq: 100}
	g.Attach(SourceCapture, func() (audio.Source, error) { return src, nil })
	waitUntil(t, func() bool { return g.Tick().Bass > 0.01 })

	denied := errors.New("permission denied")
	err := g.Attach(SourceCapture, func() (audio.Source, error) { return nil, denied })

	var audioErr *AudioError
	if !errors.As(err, &audioErr) {
		t.Fatalf("expected AudioError, got %v", err)
	}
	if !errors.Is(err, denied) {
		t.Error("AudioError should unwrap to the cause")
	}
	if g.Ready() {
		t.Error("graph should not be ready after a failed attach")
	}
	if g.Connected() != 0 {
		t.Errorf("expected no connections, got %d", g.Connected())
	}

	last := g.Bands()
	if got := g.Tick(); got != last {
		t.Errorf("not-ready tick should return last bands: %+v != %+v", got, last)
	}
}

func TestContextFailure(t *testing.T) {
	g := NewGraph(Config{
		NewContext: func() (*Context, error) { return nil, errors.New("no device") },
	})

	opened := false
	err := g.Attach(SourceMedia, func() (audio.Source, error) {
		opened = true
		return &toneSource{}, nil
	})

	var audioErr *AudioError
	if !errors.As(err, &audioErr) || audioErr.Op != "create context" {
		t.Fatalf("expected create context AudioError, got %v", err)
	}
	if opened {
		t.Error("source should not be opened without a context")
	}
	if g.Ready() {
		t.Error("graph should not be ready")
	}
}

func TestSourceEndNotifies(t *testing.T) {
	ended := make(chan SourceKind, 1)
	g := NewGraph(Config{
		OnEnded: func(kind SourceKind, err error) {
			if errors.Is(err, io.EOF) {
				ended <- kind
			}
		},
	})
	defer g.Close()

	src := &toneSource{freq: 440}
	src.Close()
	g.Attach(SourceMedia, func() (audio.Source, error) { return src, nil })

	select {
	case kind := <-ended:
		if kind != SourceMedia {
			t.Errorf("expected media kind, got %v", kind)
		}
	case <-time.After(time.Second):
		t.Fatal("OnEnded not called")
	}
}
