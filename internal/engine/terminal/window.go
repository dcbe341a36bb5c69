// ABOUTME: Terminal window size source for the render loop
// ABOUTME: Reads the tty size and reserves rows for the status panel
package terminal

import (
	"os"
	"sync"

	"golang.org/x/term"
)

// Window reports the drawable area of the controlling terminal
type Window struct {
	fd       int
	reserved int

	mu       sync.Mutex
	override [2]int
}

// NewWindow watches stdout; reserved rows are kept free for the UI chrome
func NewWindow(reserved int) *Window {
	return &Window{fd: int(os.Stdout.Fd()), reserved: reserved}
}

// Set records a size reported by the UI, which wins over the tty query
func (w *Window) Set(width, height int) {
	w.mu.Lock()
	w.override = [2]int{width, height}
	w.mu.Unlock()
}

// Size returns the drawable width and height in cells
func (w *Window) Size() (int, int) {
	w.mu.Lock()
	width, height := w.override[0], w.override[1]
	w.mu.Unlock()

	if width <= 0 || height <= 0 {
		var err error
		width, height, err = term.GetSize(w.fd)
		if err != nil || width <= 0 || height <= 0 {
			return DefaultWidth, DefaultHeight
		}
	}
	height -= w.reserved
	if height < 1 {
		height = 1
	}
	return width, height
}
