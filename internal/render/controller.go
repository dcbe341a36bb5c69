// ABOUTME: Render loop controller driving frames and preset changes
// ABOUTME: Idle/Running state machine with a frame ticker and a preset cycle timer
package render

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/pkg/audio"
)

// Defaults for preset transitions
const (
	DefaultFrameInterval  = time.Second / 60
	DefaultCycleInterval  = 15 * time.Second
	DefaultCycleBlend     = 2700 * time.Millisecond
	DefaultShiftBlend     = 500 * time.Millisecond
	DefaultShiftThreshold = 0.05
)

// State of the render loop
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// BandSource is ticked once per frame
type BandSource interface {
	Tick() audio.BandEnergies
}

// WindowSource reports the current window size in renderer units
type WindowSource interface {
	Size() (width, height int)
}

// Ticker abstracts time.Ticker so tests can drive time by hand
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker firing every d
type TickerFunc func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewStdTicker wraps time.NewTicker
func NewStdTicker(d time.Duration) Ticker { return stdTicker{time.NewTicker(d)} }

// Options tune the controller; zero values select defaults
type Options struct {
	FrameInterval  time.Duration
	CycleInterval  time.Duration
	CycleBlend     time.Duration
	ShiftBlend     time.Duration
	ShiftThreshold float64
	ShowcasePreset string
	Window         WindowSource
	NewTicker      TickerFunc
	Rand           *rand.Rand
	// OnPreset is told the name of every applied preset
	OnPreset func(name string)
}

func (o *Options) applyDefaults() {
	if o.FrameInterval <= 0 {
		o.FrameInterval = DefaultFrameInterval
	}
	if o.CycleInterval <= 0 {
		o.CycleInterval = DefaultCycleInterval
	}
	if o.CycleBlend <= 0 {
		o.CycleBlend = DefaultCycleBlend
	}
	if o.ShiftBlend <= 0 {
		o.ShiftBlend = DefaultShiftBlend
	}
	if o.ShiftThreshold <= 0 {
		o.ShiftThreshold = DefaultShiftThreshold
	}
	if o.NewTicker == nil {
		o.NewTicker = NewStdTicker
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// Controller owns the frame loop and every write to the engine.
// All engine calls happen under one mutex, so they never interleave.
type Controller struct {
	mu      sync.Mutex
	engine  Engine
	bands   BandSource
	presets PresetSource
	opts    Options

	state       State
	catalog     *Catalog
	catalogDone bool
	initialized bool
	selection   Selection
	width       int
	height      int
	frames      uint64

	run *run
}

// run holds the goroutines of one Running period
type run struct {
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewController wires a controller; nothing runs until Start
func NewController(engine Engine, bands BandSource, presets PresetSource, opts Options) *Controller {
	opts.applyDefaults()
	return &Controller{
		engine:  engine,
		bands:   bands,
		presets: presets,
		opts:    opts,
	}
}

// Start moves Idle to Running. Calling it while running does nothing.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Running {
		return
	}
	c.state = Running

	if c.opts.Window != nil {
		w, h := c.opts.Window.Size()
		c.resizeLocked(w, h)
	}

	r := &run{stop: make(chan struct{})}
	r.wg.Add(2)
	go c.loop(r, c.opts.NewTicker(c.opts.FrameInterval), c.frame)
	go c.loop(r, c.opts.NewTicker(c.opts.CycleInterval), c.cycle)
	c.run = r

	logger.Info("render loop started",
		logger.Duration("frame_interval", c.opts.FrameInterval),
		logger.Duration("cycle_interval", c.opts.CycleInterval))
}

// Stop moves Running to Idle, cancelling the frame chain and the cycle
// timer exactly once. It waits for both goroutines to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	r := c.run
	c.run = nil
	close(r.stop)
	c.mu.Unlock()

	r.wg.Wait()
	logger.Info("render loop stopped")
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Frames returns how many frames have been rendered
func (c *Controller) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Selection returns the last applied preset
func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// Catalog returns the loaded catalog, or nil before the first attach
func (c *Controller) Catalog() *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog
}

// Size returns the current surface dimensions
func (c *Controller) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// SourceAttached runs the initial preset selection after the first
// successful analyzer attachment. Later calls do nothing.
func (c *Controller) SourceAttached() {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return
	}
	c.ensureCatalogLocked()
	if c.catalog.Len() == 0 {
		c.mu.Unlock()
		return
	}
	c.initialized = true

	name := c.opts.ShowcasePreset
	if _, ok := c.catalog.Get(name); !ok || name == "" {
		name = c.catalog.At(c.opts.Rand.Intn(c.catalog.Len())).Name
	}
	c.applyLocked(name, 0, TriggerInitial)
	c.mu.Unlock()

	c.notify(name)
}

// SetShift selects a preset by slider position in [0, 1]. Values at or
// below the threshold are ignored.
func (c *Controller) SetShift(v float64) bool {
	c.mu.Lock()
	if v <= c.opts.ShiftThreshold {
		c.mu.Unlock()
		return false
	}
	if v > 1 {
		v = 1
	}
	c.ensureCatalogLocked()
	n := c.catalog.Len()
	if n == 0 {
		c.mu.Unlock()
		return false
	}
	idx := int(math.Floor(v * float64(n-1)))
	name := c.catalog.At(idx).Name
	c.applyLocked(name, c.opts.ShiftBlend, TriggerShift)
	c.mu.Unlock()

	c.notify(name)
	return true
}

// Resize sets the surface to the given window dimensions
func (c *Controller) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resizeLocked(width, height)
}

func (c *Controller) resizeLocked(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.width, c.height = width, height
	c.engine.SetRendererSize(width, height)
}

func (c *Controller) ensureCatalogLocked() {
	if c.catalogDone {
		return
	}
	c.catalogDone = true
	if c.presets == nil {
		c.catalog = NewCatalog(nil)
		return
	}
	presets, err := c.presets.Presets()
	if err != nil {
		logger.Error("failed to load presets", logger.ErrorField(err))
		c.catalog = NewCatalog(nil)
		return
	}
	c.catalog = NewCatalog(presets)
	logger.Info("preset catalog loaded", logger.Int("presets", c.catalog.Len()))
}

func (c *Controller) applyLocked(name string, blend time.Duration, trigger Trigger) {
	p, _ := c.catalog.Get(name)
	c.engine.LoadPreset(p, blend)
	c.selection = Selection{Name: name, Blend: blend, Trigger: trigger, At: time.Now()}
	logger.Debug("preset applied",
		logger.String("preset", name),
		logger.String("trigger", trigger.String()),
		logger.Duration("blend", blend))
}

func (c *Controller) notify(name string) {
	if c.opts.OnPreset != nil {
		c.opts.OnPreset(name)
	}
}

func (c *Controller) loop(r *run, t Ticker, fn func()) {
	defer r.wg.Done()
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C():
			fn()
		}
	}
}

func (c *Controller) frame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return
	}
	var bands audio.BandEnergies
	if c.bands != nil {
		bands = c.bands.Tick()
	}
	c.engine.Render(bands)
	c.frames++
}

func (c *Controller) cycle() {
	c.mu.Lock()
	if c.state != Running || c.catalog.Len() == 0 {
		c.mu.Unlock()
		return
	}
	name := c.catalog.At(c.opts.Rand.Intn(c.catalog.Len())).Name
	c.applyLocked(name, c.opts.CycleBlend, TriggerCycle)
	c.mu.Unlock()

	c.notify(name)
}
