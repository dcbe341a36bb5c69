// ABOUTME: Built-in terminal preset catalog
// ABOUTME: Each preset is a palette gradient, a glyph ramp and a layout mode
package terminal

import (
	"github.com/lucasb-eyer/go-colorful"

	"github.com/visual-lock/visuallock/internal/render"
)

// ShowcasePreset is preferred as the first preset when present
const ShowcasePreset = "Flexi, martin + geiss - dedicated to the sherwin maxawow"

// Mode is the layout a preset draws with
type Mode int

const (
	// ModeBars grows columns up from the bottom
	ModeBars Mode = iota
	// ModeMirror grows columns out from the middle row
	ModeMirror
	// ModeWave draws a travelling band-modulated wave
	ModeWave
)

// Style is the Definition carried by terminal presets
type Style struct {
	Palette []colorful.Color
	Glyphs  []rune
	Mode    Mode
	// Decay is how much of the previous frame's column height survives
	Decay float64
	// Gain scales band energies before drawing
	Gain float64
}

var (
	blockRamp   = []rune(" ▁▂▃▄▅▆▇█")
	shadeRamp   = []rune(" ░▒▓█")
	dotRamp     = []rune(" ·•●")
	brailleRamp = []rune(" ⡀⣀⣄⣤⣦⣶⣷⣿")
)

func hex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}
	}
	return c
}

func palette(stops ...string) []colorful.Color {
	out := make([]colorful.Color, len(stops))
	for i, s := range stops {
		out[i] = hex(s)
	}
	return out
}

var builtins = []struct {
	name  string
	style Style
}{
	{ShowcasePreset, Style{Palette: palette("#12002e", "#6a00ff", "#ff2fd0", "#fff3b0"), Glyphs: blockRamp, Mode: ModeMirror, Decay: 0.82, Gain: 1.6}},
	{"Geiss - Cosmic Dust 2", Style{Palette: palette("#000814", "#003566", "#ffc300", "#ffffff"), Glyphs: dotRamp, Mode: ModeBars, Decay: 0.9, Gain: 1.4}},
	{"Rovastar - Fractopia", Style{Palette: palette("#03071e", "#6a040f", "#e85d04", "#ffba08"), Glyphs: shadeRamp, Mode: ModeBars, Decay: 0.75, Gain: 1.5}},
	{"martin - mandelbox explorer - high speed demo version", Style{Palette: palette("#0b090a", "#3a86ff", "#8338ec", "#ff006e"), Glyphs: brailleRamp, Mode: ModeWave, Decay: 0.6, Gain: 1.8}},
	{"Flexi - alien fish pond", Style{Palette: palette("#011627", "#2ec4b6", "#e71d36", "#fdfffc"), Glyphs: blockRamp, Mode: ModeMirror, Decay: 0.85, Gain: 1.5}},
	{"Zylot - Star Ornament", Style{Palette: palette("#10002b", "#5a189a", "#9d4edd", "#e0aaff"), Glyphs: dotRamp, Mode: ModeMirror, Decay: 0.7, Gain: 1.7}},
	{"Unchained - Rewop", Style{Palette: palette("#001219", "#0a9396", "#ee9b00", "#ae2012"), Glyphs: shadeRamp, Mode: ModeWave, Decay: 0.5, Gain: 1.6}},
	{"Eo.S. - glowsticks v2 05 and proton lights", Style{Palette: palette("#050505", "#00ff87", "#60efff", "#ffffff"), Glyphs: brailleRamp, Mode: ModeBars, Decay: 0.8, Gain: 1.5}},
	{"shifter - escape the worm - Eo.S. + Phat remix nz+2", Style{Palette: palette("#1b0000", "#7f0000", "#ff4d00", "#ffee00"), Glyphs: blockRamp, Mode: ModeBars, Decay: 0.88, Gain: 1.4}},
	{"Aderrasi - Potion of Spirits", Style{Palette: palette("#0d1b2a", "#1b263b", "#415a77", "#e0e1dd"), Glyphs: shadeRamp, Mode: ModeMirror, Decay: 0.78, Gain: 1.6}},
}

// Presets is the built-in catalog; it implements render.PresetSource
type Presets struct{}

// Presets returns the built-in presets in display order
func (Presets) Presets() ([]render.Preset, error) {
	out := make([]render.Preset, len(builtins))
	for i, b := range builtins {
		out[i] = render.Preset{Name: b.name, Definition: b.style}
	}
	return out, nil
}

// defaultStyle is drawn before any preset is loaded
func defaultStyle() Style {
	return builtins[0].style
}
