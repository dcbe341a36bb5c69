// ABOUTME: Tests for the terminal engine and its preset catalog
// ABOUTME: Uses a fake clock to step through preset cross-fades
package terminal

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/visual-lock/visuallock/internal/render"
	"github.com/visual-lock/visuallock/pkg/audio"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestPresetsCatalog(t *testing.T) {
	presets, err := Presets{}.Presets()
	if err != nil {
		t.Fatalf("Presets failed: %v", err)
	}
	if len(presets) < 2 {
		t.Fatalf("expected several presets, got %d", len(presets))
	}

	cat := render.NewCatalog(presets)
	if cat.Len() != len(presets) {
		t.Errorf("duplicate preset names in catalog")
	}
	if _, ok := cat.Get(ShowcasePreset); !ok {
		t.Error("showcase preset missing")
	}
	for _, p := range presets {
		style, ok := p.Definition.(Style)
		if !ok {
			t.Errorf("%s: definition is %T", p.Name, p.Definition)
			continue
		}
		if len(style.Palette) < 2 || len(style.Glyphs) < 2 {
			t.Errorf("%s: incomplete style", p.Name)
		}
	}
}

func TestRenderFillsGrid(t *testing.T) {
	e := New()
	e.SetRendererSize(20, 6)

	for _, bands := range []audio.BandEnergies{{}, {Sub: 1, Bass: 1, Mid: 1, High: 1}} {
		e.Render(bands)
		lines := strings.Split(e.View(), "\n")
		if len(lines) != 6 {
			t.Fatalf("got %d lines, want 6", len(lines))
		}
		for i, line := range lines {
			if w := lipgloss.Width(line); w != 20 {
				t.Errorf("line %d width = %d, want 20", i, w)
			}
		}
	}
	if e.Frames() != 2 {
		t.Errorf("Frames() = %d, want 2", e.Frames())
	}
}

func TestRenderSilenceIsBlankBars(t *testing.T) {
	e := New()
	e.SetRendererSize(8, 4)
	e.LoadPreset(render.Preset{Name: "bars", Definition: Style{
		Palette: []colorful.Color{{}, {R: 1, G: 1, B: 1}},
		Glyphs:  []rune(" #"),
		Mode:    ModeBars,
		Gain:    1,
	}}, 0)

	e.Render(audio.BandEnergies{})
	if strings.Contains(e.View(), "#") {
		t.Errorf("silent frame drew bars:\n%s", e.View())
	}

	e.Render(audio.BandEnergies{Sub: 1, Bass: 1, Mid: 1, High: 1})
	if got := strings.Count(e.View(), "#"); got != 32 {
		t.Errorf("full frame drew %d cells, want 32", got)
	}
}

func TestDecayKeepsTrail(t *testing.T) {
	e := New()
	e.SetRendererSize(4, 10)
	e.LoadPreset(render.Preset{Name: "trail", Definition: Style{
		Glyphs: []rune(" #"),
		Mode:   ModeBars,
		Decay:  0.5,
		Gain:   1,
	}}, 0)

	e.Render(audio.BandEnergies{Sub: 1, Bass: 1, Mid: 1, High: 1})
	e.Render(audio.BandEnergies{})
	if e.levels[0] != 0.5 {
		t.Errorf("level after one silent frame = %v, want 0.5", e.levels[0])
	}
}

func TestLoadPresetBlend(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	e := newWithClock(clock.now)

	red := Style{Palette: []colorful.Color{{R: 1}}, Glyphs: blockRamp, Gain: 1, Decay: 0}
	blue := Style{Palette: []colorful.Color{{B: 1}}, Glyphs: shadeRamp, Mode: ModeMirror, Gain: 2, Decay: 1}

	e.LoadPreset(render.Preset{Name: "red", Definition: red}, 0)
	if e.Preset() != "red" {
		t.Errorf("Preset() = %q", e.Preset())
	}
	if got := e.mixLocked(e.blendAlphaLocked(clock.now())); got.Gain != 1 {
		t.Errorf("zero blend should apply immediately, gain = %v", got.Gain)
	}

	e.LoadPreset(render.Preset{Name: "blue", Definition: blue}, 2*time.Second)
	clock.advance(time.Second)
	mid := e.mixLocked(e.blendAlphaLocked(clock.now()))
	if mid.Gain != 1.5 {
		t.Errorf("mid-blend gain = %v, want 1.5", mid.Gain)
	}
	if mid.Mode != ModeMirror {
		t.Errorf("mid-blend mode = %v, want mirror", mid.Mode)
	}

	clock.advance(2 * time.Second)
	end := e.mixLocked(e.blendAlphaLocked(clock.now()))
	if end.Gain != 2 || string(end.Glyphs) != string(shadeRamp) {
		t.Errorf("blend did not finish: %+v", end)
	}
}

func TestLoadPresetIgnoresForeignDefinitions(t *testing.T) {
	e := New()
	e.LoadPreset(render.Preset{Name: "remote-only", Definition: "not a style"}, 0)
	if e.Preset() != "" {
		t.Errorf("foreign preset should be ignored, got %q", e.Preset())
	}
}

func TestColumnLevel(t *testing.T) {
	values := [4]float64{0, 0.3, 0.6, 0.9}
	tests := []struct {
		x, width int
		want     float64
	}{
		{0, 4, 0},
		{3, 4, 0.9},
		{0, 1, 0},
		{2, 7, 0.3},
	}
	for _, tt := range tests {
		got := columnLevel(values, tt.x, tt.width)
		if got < tt.want-1e-9 || got > tt.want+1e-9 {
			t.Errorf("columnLevel(x=%d, w=%d) = %v, want %v", tt.x, tt.width, got, tt.want)
		}
	}
}

func TestGradientAt(t *testing.T) {
	p := []colorful.Color{{R: 0, G: 0, B: 0}, {R: 1, G: 1, B: 1}}
	if got := gradientAt(p, 0); got != p[0] {
		t.Errorf("gradientAt(0) = %v", got)
	}
	if got := gradientAt(p, 1); got != p[1] {
		t.Errorf("gradientAt(1) = %v", got)
	}
	if got := gradientAt(nil, 0.5); got.R != 0.5 {
		t.Errorf("empty palette fallback = %v", got)
	}
}

func TestWindowOverride(t *testing.T) {
	w := NewWindow(3)
	w.Set(100, 40)
	if width, height := w.Size(); width != 100 || height != 37 {
		t.Errorf("Size() = %d x %d, want 100 x 37", width, height)
	}
	w.Set(10, 2)
	if _, height := w.Size(); height != 1 {
		t.Errorf("height floor = %d, want 1", height)
	}
}
