// ABOUTME: Contract between the render loop and visual engines
// ABOUTME: Defines presets, the Engine interface and a fan-out engine
package render

import (
	"time"

	"github.com/visual-lock/visuallock/pkg/audio"
)

// Preset is a named visual program. Definition is opaque to the loop and
// interpreted only by the engine that supplied it.
type Preset struct {
	Name       string
	Definition any
}

// Engine draws frames driven by band energies
type Engine interface {
	// LoadPreset switches programs, cross-fading over blend
	LoadPreset(p Preset, blend time.Duration)
	// Render draws one frame
	Render(bands audio.BandEnergies)
	// SetRendererSize resizes the drawing surface
	SetRendererSize(width, height int)
}

// PresetSource supplies the catalog, in display order
type PresetSource interface {
	Presets() ([]Preset, error)
}

// MultiEngine forwards every call to each engine in order
type MultiEngine []Engine

func (m MultiEngine) LoadPreset(p Preset, blend time.Duration) {
	for _, e := range m {
		e.LoadPreset(p, blend)
	}
}

func (m MultiEngine) Render(bands audio.BandEnergies) {
	for _, e := range m {
		e.Render(bands)
	}
}

func (m MultiEngine) SetRendererSize(width, height int) {
	for _, e := range m {
		e.SetRendererSize(width, height)
	}
}
