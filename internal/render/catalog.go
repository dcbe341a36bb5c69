// ABOUTME: Ordered preset catalog and the current selection
// ABOUTME: The catalog is immutable once built; selection is last-writer-wins
package render

import "time"

// Catalog is an ordered, immutable mapping of preset names to presets
type Catalog struct {
	names  []string
	byName map[string]Preset
}

// NewCatalog builds a catalog, keeping the first preset for duplicate names
func NewCatalog(presets []Preset) *Catalog {
	c := &Catalog{byName: make(map[string]Preset, len(presets))}
	for _, p := range presets {
		if _, dup := c.byName[p.Name]; dup {
			continue
		}
		c.names = append(c.names, p.Name)
		c.byName[p.Name] = p
	}
	return c
}

// Len returns the number of presets
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// Names returns a copy of the ordered names
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}

// Get looks a preset up by name
func (c *Catalog) Get(name string) (Preset, bool) {
	if c == nil {
		return Preset{}, false
	}
	p, ok := c.byName[name]
	return p, ok
}

// At returns the preset at index i
func (c *Catalog) At(i int) Preset {
	return c.byName[c.names[i]]
}

// Trigger records which writer produced a selection
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerInitial
	TriggerCycle
	TriggerShift
)

func (t Trigger) String() string {
	switch t {
	case TriggerInitial:
		return "initial"
	case TriggerCycle:
		return "cycle"
	case TriggerShift:
		return "shift"
	default:
		return "none"
	}
}

// Selection is the preset most recently applied to the engine
type Selection struct {
	Name    string
	Blend   time.Duration
	Trigger Trigger
	At      time.Time
}
