// ABOUTME: Audio graph that routes exactly one source into the analyser
// ABOUTME: Owns the lazy context, source pumps and the smoothed band energies
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/pkg/audio"
	"github.com/visual-lock/visuallock/pkg/audio/resample"
)

// SourceKind tells the graph how to route a source
type SourceKind int

const (
	// SourceCapture feeds only the analyser (no feedback loop)
	SourceCapture SourceKind = iota
	// SourceMedia feeds the analyser and the audible sink
	SourceMedia
)

func (k SourceKind) String() string {
	switch k {
	case SourceCapture:
		return "capture"
	case SourceMedia:
		return "media"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// Opener produces the source to attach. Capture openers fail when the
// device is unavailable or access is refused.
type Opener func() (audio.Source, error)

// ContextFactory builds the audio context on first attach
type ContextFactory func() (*Context, error)

const (
	blockFrames    = 1024
	drainTimeout   = 200 * time.Millisecond
	releaseTimeout = 2 * time.Second
)

// Config configures a Graph
type Config struct {
	NewContext ContextFactory
	// OnEnded is called from the pump goroutine when a source runs dry
	OnEnded func(kind SourceKind, err error)
}

type connection struct {
	kind   SourceKind
	src    audio.Source
	cancel context.CancelFunc
	done   chan struct{}
}

// Graph is the frequency analyzer: one context, one analyser node and at
// most one connected source.
type Graph struct {
	cfg Config

	// mu serializes Attach/Close
	mu     sync.Mutex
	actx   *Context
	active *connection

	tap *Tap

	// stateMu guards analysis state read by Tick
	stateMu   sync.Mutex
	analyser  *Analyser
	freq      []byte
	bands     audio.BandEnergies
	ready     bool
	connected int
	ticks     uint64
}

// NewGraph creates an idle graph; nothing touches the device until Attach
func NewGraph(cfg Config) *Graph {
	tap := NewTap(FFTSize)
	return &Graph{
		cfg:      cfg,
		tap:      tap,
		analyser: NewAnalyser(tap),
		freq:     make([]byte, BinCount),
	}
}

// Attach disconnects the current source, opens the next one and connects it
func (g *Graph) Attach(kind SourceKind, open Opener) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.actx == nil {
		factory := g.cfg.NewContext
		if factory == nil {
			factory = func() (*Context, error) { return NewContext(nil, audio.Format{SampleRate: 44100, Channels: 2}) }
		}
		actx, err := factory()
		if err != nil {
			g.setReady(false)
			return &AudioError{Op: "create context", Err: err}
		}
		g.actx = actx
	}

	if err := g.actx.Resume(); err != nil {
		logger.Warn("failed to resume audio context", logger.ErrorField(err))
	}

	g.disconnectLocked()

	src, err := open()
	if err != nil {
		g.setReady(false)
		return &AudioError{Op: "open " + kind.String(), Err: err}
	}

	g.connectLocked(kind, src)
	g.setReady(true)

	f := src.Format()
	logger.Info("audio source attached",
		logger.String("kind", kind.String()),
		logger.Int("sample_rate", f.SampleRate),
		logger.Int("channels", f.Channels))
	return nil
}

// Detach disconnects the current source and keeps the context alive
func (g *Graph) Detach() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disconnectLocked()
	g.setReady(false)
}

// Close releases the active source. The context survives until process exit.
func (g *Graph) Close() error {
	g.Detach()
	return nil
}

// SetVolume changes the gain of the audible sink
func (g *Graph) SetVolume(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.actx != nil {
		g.actx.SetVolume(v)
	}
}

// Tick advances band smoothing by one frame and returns the new energies.
// When the graph is not ready the last known energies are returned unchanged.
func (g *Graph) Tick() audio.BandEnergies {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()

	if !g.ready {
		return g.bands
	}

	g.freq = g.analyser.ByteFrequencyData(g.freq)
	g.bands = step(g.bands, g.freq)

	g.ticks++
	if g.ticks%100 == 0 {
		sum := 0
		for _, v := range g.freq[:100] {
			sum += int(v)
		}
		if sum > 0 {
			logger.Debug("audio data detected", logger.Int("sample_sum", sum))
		} else {
			logger.Debug("silence or no data")
		}
	}
	return g.bands
}

// Bands returns the current energies without advancing them
func (g *Graph) Bands() audio.BandEnergies {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	return g.bands
}

// Uniforms returns the bands in sub, bass, mid, high order
func (g *Graph) Uniforms() [4]float64 {
	return g.Bands().Slice()
}

// Ready reports whether a source is connected and analysed
func (g *Graph) Ready() bool {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	return g.ready
}

// Connected returns the number of source nodes wired to the analyser
func (g *Graph) Connected() int {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	return g.connected
}

func (g *Graph) setReady(ready bool) {
	g.stateMu.Lock()
	g.ready = ready
	g.stateMu.Unlock()
}

func (g *Graph) connectLocked(kind SourceKind, src audio.Source) {
	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{kind: kind, src: src, cancel: cancel, done: make(chan struct{})}

	g.stateMu.Lock()
	g.connected++
	g.analyser.Reset()
	g.stateMu.Unlock()
	g.tap.Reset()

	g.active = conn
	go g.pump(ctx, conn)
}

func (g *Graph) disconnectLocked() {
	conn := g.active
	if conn == nil {
		return
	}
	g.active = nil

	conn.cancel()
	select {
	case <-conn.done:
	case <-time.After(drainTimeout):
		// Blocked in ReadSamples; closing the source releases it
	}
	if err := conn.src.Close(); err != nil {
		logger.Warn("failed to close audio source", logger.ErrorField(err))
	}
	select {
	case <-conn.done:
	case <-time.After(releaseTimeout):
		logger.Warn("audio pump did not stop in time", logger.String("kind", conn.kind.String()))
	}

	g.stateMu.Lock()
	g.connected--
	g.stateMu.Unlock()
}

// pump moves samples from the source into the tap and, for media, the sink
func (g *Graph) pump(ctx context.Context, conn *connection) {
	defer close(conn.done)

	format := conn.src.Format()
	if format.Channels <= 0 {
		format.Channels = 1
	}
	if format.SampleRate <= 0 {
		format.SampleRate = 44100
	}
	buf := make([]float32, blockFrames*format.Channels)

	audible := conn.kind == SourceMedia && g.actx.Audible()
	sinkFormat := g.actx.Format()
	rs := resample.New(format.SampleRate, sinkFormat.SampleRate, format.Channels)
	var mono, resampled, remixed []float32

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := conn.src.ReadSamples(buf)
		if n > 0 {
			mono = audio.MixToMono(buf[:n], format.Channels, mono)
			g.tap.Write(mono)

			switch {
			case audible:
				resampled = rs.Resample(buf[:n], resampled[:0])
				remixed = audio.Remix(resampled, format.Channels, sinkFormat.Channels, remixed)
				if werr := g.actx.write(remixed); werr != nil {
					logger.Warn("audio sink write failed, continuing silently", logger.ErrorField(werr))
					audible = false
				}
			case conn.kind == SourceMedia:
				// No sink to pace us, so follow the wall clock
				frames := n / format.Channels
				wait := time.Duration(frames) * time.Second / time.Duration(format.SampleRate)
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Info("audio source ended", logger.String("kind", conn.kind.String()))
			} else {
				logger.Warn("audio source failed", logger.ErrorField(err))
			}
			if g.cfg.OnEnded != nil {
				g.cfg.OnEnded(conn.kind, err)
			}
			return
		}
	}
}
