// ABOUTME: Terminal visual engine drawing band energies as colored glyphs
// ABOUTME: Keeps the latest frame for the TUI to pull and cross-fades presets
package terminal

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/visual-lock/visuallock/internal/render"
	"github.com/visual-lock/visuallock/pkg/audio"
)

// Default surface used until the first resize
const (
	DefaultWidth  = 64
	DefaultHeight = 16
)

// Engine renders frames into a string buffer
type Engine struct {
	mu  sync.Mutex
	now func() time.Time

	width  int
	height int

	from       Style
	to         Style
	preset     string
	blendStart time.Time
	blendDur   time.Duration

	levels []float64
	phase  float64
	frame  string
	frames uint64
}

var _ render.Engine = (*Engine)(nil)

// New creates an engine with the default style and surface
func New() *Engine {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Engine {
	style := defaultStyle()
	return &Engine{
		now:    now,
		width:  DefaultWidth,
		height: DefaultHeight,
		from:   style,
		to:     style,
		levels: make([]float64, DefaultWidth),
	}
}

// LoadPreset starts a cross-fade from the current look to the preset.
// Presets without a terminal Style keep the current look.
func (e *Engine) LoadPreset(p render.Preset, blend time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	style, ok := p.Definition.(Style)
	if !ok {
		return
	}
	now := e.now()
	// Freeze whatever is on screen as the new starting point
	e.from = e.snapshotLocked(now)
	e.to = style
	e.preset = p.Name
	e.blendStart = now
	e.blendDur = blend
	if blend <= 0 {
		e.from = style
	}
}

// SetRendererSize resizes the character grid
func (e *Engine) SetRendererSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.width, e.height = width, height
	if len(e.levels) != width {
		e.levels = make([]float64, width)
	}
}

// Render draws one frame from the band energies
func (e *Engine) Render(bands audio.BandEnergies) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	alpha := e.blendAlphaLocked(now)
	style := e.mixLocked(alpha)

	values := bands.Slice()
	decay := clamp01(style.Decay)
	for x := range e.levels {
		target := clamp01(columnLevel(values, x, e.width) * style.Gain)
		e.levels[x] = math.Max(target, e.levels[x]*decay)
	}
	e.phase += 0.15 + 0.6*values[1]

	e.frame = e.drawLocked(style, alpha)
	e.frames++
}

// View returns the most recent frame
func (e *Engine) View() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

// Frames returns the number of rendered frames
func (e *Engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// Preset returns the name of the last loaded preset
func (e *Engine) Preset() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preset
}

// Size returns the current grid dimensions
func (e *Engine) Size() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width, e.height
}

func (e *Engine) blendAlphaLocked(now time.Time) float64 {
	if e.blendDur <= 0 {
		return 1
	}
	return clamp01(float64(now.Sub(e.blendStart)) / float64(e.blendDur))
}

// snapshotLocked is the style currently on screen, with the palette mixed
func (e *Engine) snapshotLocked(now time.Time) Style {
	return e.mixLocked(e.blendAlphaLocked(now))
}

func (e *Engine) mixLocked(alpha float64) Style {
	if alpha >= 1 {
		return e.to
	}
	if alpha <= 0 {
		return e.from
	}
	mixed := Style{
		Palette: mixPalettes(e.from.Palette, e.to.Palette, alpha),
		Decay:   lerp(e.from.Decay, e.to.Decay, alpha),
		Gain:    lerp(e.from.Gain, e.to.Gain, alpha),
	}
	if alpha < 0.5 {
		mixed.Glyphs, mixed.Mode = e.from.Glyphs, e.from.Mode
	} else {
		mixed.Glyphs, mixed.Mode = e.to.Glyphs, e.to.Mode
	}
	return mixed
}

func mixPalettes(a, b []colorful.Color, t float64) []colorful.Color {
	const stops = 8
	out := make([]colorful.Color, stops)
	for i := range out {
		pos := float64(i) / float64(stops-1)
		out[i] = gradientAt(a, pos).BlendLab(gradientAt(b, pos), t)
	}
	return out
}

// gradientAt samples a palette at t in [0, 1]
func gradientAt(p []colorful.Color, t float64) colorful.Color {
	switch len(p) {
	case 0:
		return colorful.Color{R: t, G: t, B: t}
	case 1:
		return p[0]
	}
	t = clamp01(t)
	pos := t * float64(len(p)-1)
	i := int(pos)
	if i >= len(p)-1 {
		return p[len(p)-1]
	}
	frac := pos - float64(i)
	if frac == 0 {
		return p[i]
	}
	return p[i].BlendLab(p[i+1], frac)
}

// columnLevel interpolates the four bands across the grid width
func columnLevel(values [4]float64, x, width int) float64 {
	if width <= 1 {
		return values[0]
	}
	pos := float64(x) / float64(width-1) * float64(len(values)-1)
	i := int(pos)
	if i >= len(values)-1 {
		return values[len(values)-1]
	}
	return lerp(values[i], values[i+1], pos-float64(i))
}

// drawLocked paints the grid row by row, grouping runs of one color
func (e *Engine) drawLocked(style Style, alpha float64) string {
	glyphs := style.Glyphs
	if len(glyphs) < 2 {
		glyphs = blockRamp
	}

	var sb strings.Builder
	for y := 0; y < e.height; y++ {
		var run strings.Builder
		runColor := ""
		flush := func() {
			if run.Len() == 0 {
				return
			}
			sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(runColor)).Render(run.String()))
			run.Reset()
		}

		for x := 0; x < e.width; x++ {
			intensity := cellIntensity(style.Mode, e.levels[x], x, y, e.width, e.height, e.phase)
			g := glyphs[int(math.Round(intensity*float64(len(glyphs)-1)))]
			heat := 1 - float64(y)/math.Max(1, float64(e.height-1))
			if style.Mode == ModeMirror {
				heat = 1 - math.Abs(heat*2-1)
			}
			c := gradientAt(style.Palette, 0.25*heat+0.75*intensity).Hex()
			if c != runColor {
				flush()
				runColor = c
			}
			run.WriteRune(g)
		}
		flush()
		if y < e.height-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// cellIntensity is how filled a cell is, in [0, 1]
func cellIntensity(mode Mode, level float64, x, y, width, height int, phase float64) float64 {
	h := float64(height)
	row := float64(height - 1 - y) // 0 at the bottom

	switch mode {
	case ModeMirror:
		mid := (h - 1) / 2
		dist := math.Abs(float64(y) - mid)
		reach := level * (mid + 1)
		return clamp01(reach - dist)
	case ModeWave:
		center := (h - 1) / 2 * (1 + level*math.Sin(phase+float64(x)*0.35))
		return clamp01(1 - math.Abs(float64(y)-center)/math.Max(1, level*h*0.25+0.5))
	default:
		fill := level * h
		return clamp01(fill - row)
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
