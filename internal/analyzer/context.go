// ABOUTME: Audio context wrapping the single output device of the process
// ABOUTME: Created lazily on first attach and kept for the whole session
package analyzer

import (
	"fmt"

	"github.com/visual-lock/visuallock/pkg/audio"
	"github.com/visual-lock/visuallock/pkg/audio/output"
)

// Sink is the audible destination of decoded media
type Sink = output.Output

// Context owns the output sink. A nil sink gives a silent context in which
// media sources are paced by the wall clock.
type Context struct {
	sink   Sink
	format audio.Format
}

// NewContext opens sink at the requested format
func NewContext(sink Sink, format audio.Format) (*Context, error) {
	if sink == nil {
		return &Context{format: format}, nil
	}
	if err := sink.Open(format.SampleRate, format.Channels); err != nil {
		return nil, fmt.Errorf("failed to open output: %w", err)
	}
	return &Context{sink: sink, format: sink.Format()}, nil
}

// Format is the sink's running format
func (c *Context) Format() audio.Format { return c.format }

// Audible reports whether a real sink is attached
func (c *Context) Audible() bool { return c.sink != nil }

// Resume restarts a suspended sink
func (c *Context) Resume() error {
	if c.sink == nil {
		return nil
	}
	return c.sink.Resume()
}

// SetVolume sets the sink gain
func (c *Context) SetVolume(v float64) {
	if c.sink != nil {
		c.sink.SetVolume(v)
	}
}

func (c *Context) write(samples []float32) error {
	return c.sink.Write(samples)
}
