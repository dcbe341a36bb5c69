// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the command channel back to the session
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// CommandKind identifies a user action
type CommandKind int

const (
	// CmdTogglePlay switches between ACTIVE and STANDBY
	CmdTogglePlay CommandKind = iota
	// CmdSourceMode selects mic, file or url
	CmdSourceMode
	// CmdLoad loads Text as a file path or track URL for the current mode
	CmdLoad
	// CmdVolume sets the volume to Value
	CmdVolume
	// CmdShift moves the preset shift slider to Value
	CmdShift
	// CmdCredential answers a credential prompt; Cancel means no answer
	CmdCredential
	// CmdResize reports a new terminal size
	CmdResize
)

// Command is sent from the UI to the session
type Command struct {
	Kind   CommandKind
	Mode   SourceMode
	Value  float64
	Text   string
	Cancel bool
	Width  int
	Height int
}

// QuitMsg is sent when the user quits
type QuitMsg struct{}

// Controls holds channels for communication with the session
type Controls struct {
	Commands chan Command
	Quit     chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan Command, 16),
		Quit:     make(chan QuitMsg, 1),
	}
}

// FrameSource is the engine view the UI pulls frames from
type FrameSource interface {
	View() string
	Frames() uint64
}

// Run creates the TUI program; the caller runs it
func Run(ctrl *Controls, frames FrameSource) *tea.Program {
	return tea.NewProgram(NewModel(ctrl, frames), tea.WithAltScreen())
}
