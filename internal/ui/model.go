// ABOUTME: Bubbletea model for the visualizer TUI
// ABOUTME: Defines application state, key handling and the status panel
package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SourceMode is where audio comes from
type SourceMode string

const (
	ModeMic  SourceMode = "mic"
	ModeFile SourceMode = "file"
	ModeURL  SourceMode = "url"
)

// PanelHeight is the number of rows the status panel occupies
const PanelHeight = 5

const (
	frameInterval = time.Second / 30
	volumeStep    = 0.05
	shiftStep     = 0.05
	fineStep      = 0.01
)

type inputMode int

const (
	inputNone inputMode = iota
	inputLoad
	inputCredential
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff2fd0"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff87"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4C566A"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EBCB8B"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	controls *Controls
	frames   FrameSource

	// Playback
	active  bool
	loading bool
	mode    SourceMode
	volume  float64
	shift   float64

	// Visual
	preset    string
	frame     string
	fps       float64
	lastCount uint64
	lastFPSAt time.Time

	// Status line
	status string

	// Input
	input       inputMode
	inputPrompt string
	inputNote   string
	text        textinput.Model

	hidden bool

	// Dimensions
	width  int
	height int
}

// StatusMsg updates TUI state; nil or empty fields are left alone
type StatusMsg struct {
	Active  *bool
	Loading *bool
	Mode    SourceMode
	Preset  string
	Volume  *float64
	Status  *string
}

// CredentialPromptMsg opens the credential entry
type CredentialPromptMsg struct {
	Message string
	Current string
}

type frameTickMsg time.Time

// NewModel creates a new TUI model
func NewModel(ctrl *Controls, frames FrameSource) Model {
	ti := textinput.New()
	ti.CharLimit = 2048
	ti.Width = 60
	return Model{
		controls: ctrl,
		frames:   frames,
		mode:     ModeMic,
		volume:   0.5,
		text:     ti,
	}
}

// Init starts the frame ticker
func (m Model) Init() tea.Cmd {
	return tickFrame()
}

func tickFrame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameTickMsg(t) })
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.input != inputNone {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.send(Command{Kind: CmdResize, Width: msg.Width, Height: m.frameHeight()})
	case frameTickMsg:
		m.pullFrame(time.Time(msg))
		return m, tickFrame()
	case StatusMsg:
		m.applyStatus(msg)
	case CredentialPromptMsg:
		m.openInput(inputCredential, "Client ID:", msg.Current)
		m.inputNote = strings.Join(strings.Fields(msg.Message), " ")
		return m, textinput.Blink
	}
	return m, nil
}

// pullFrame copies the latest engine frame and updates the fps estimate
func (m *Model) pullFrame(now time.Time) {
	if m.frames == nil {
		return
	}
	m.frame = m.frames.View()
	if m.lastFPSAt.IsZero() {
		m.lastFPSAt, m.lastCount = now, m.frames.Frames()
		return
	}
	if dt := now.Sub(m.lastFPSAt); dt >= time.Second {
		count := m.frames.Frames()
		m.fps = float64(count-m.lastCount) / dt.Seconds()
		m.lastFPSAt, m.lastCount = now, count
	}
}

// View renders the TUI
func (m Model) View() string {
	if m.hidden {
		return m.frame
	}
	var b strings.Builder
	b.WriteString(m.frame)
	b.WriteString("\n")
	b.WriteString(m.renderPanel())
	return b.String()
}

// frameHeight is the space left for the visual
func (m Model) frameHeight() int {
	if m.hidden {
		return m.height
	}
	return max(1, m.height-PanelHeight)
}

// renderPanel renders the status panel in exactly PanelHeight lines
func (m Model) renderPanel() string {
	state := idleStyle.Render("STANDBY")
	if m.active {
		state = activeStyle.Render("ACTIVE")
	}
	if m.loading {
		state = statusStyle.Render("LOADING")
	}

	line1 := fmt.Sprintf("%s  %s  [%s]  %.0f fps", titleStyle.Render("VISUAL LOCK"), state, strings.ToUpper(string(m.mode)), m.fps)
	line2 := "Preset: " + truncate(m.preset, max(10, m.width-10))
	if m.input == inputCredential && m.inputNote != "" {
		line2 = statusStyle.Render(truncate(m.inputNote, max(10, m.width)))
	}
	line3 := fmt.Sprintf("Volume [%s] %3.0f%%   Shift [%s] %3.0f%%",
		renderBar(m.volume, 10), m.volume*100, renderBar(m.shift, 10), m.shift*100)

	var line4 string
	if m.input != inputNone {
		line4 = m.inputPrompt + " " + m.text.View()
	} else {
		line4 = statusStyle.Render(truncate(m.status, max(10, m.width)))
	}
	line5 := helpStyle.Render("space:play  m/f/u:mode  l:load  [/]:shift  +/-:volume  h:hide  q:quit")

	return strings.Join([]string{line1, line2, line3, line4, line5}, "\n")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case " ":
		m.send(Command{Kind: CmdTogglePlay})
	case "h":
		m.hidden = !m.hidden
		m.send(Command{Kind: CmdResize, Width: m.width, Height: m.frameHeight()})
	case "m":
		m.setMode(ModeMic)
	case "f":
		m.setMode(ModeFile)
	case "u":
		m.setMode(ModeURL)
	case "l":
		switch {
		case m.loading:
		case m.mode == ModeURL:
			m.openInput(inputLoad, "Track URL:", "")
			return m, textinput.Blink
		case m.mode == ModeFile:
			m.openInput(inputLoad, "Audio file:", "")
			return m, textinput.Blink
		}
	case "+", "=", "up":
		m.setVolume(m.volume + volumeStep)
	case "-", "down":
		m.setVolume(m.volume - volumeStep)
	case "]":
		m.setShift(m.shift + shiftStep)
	case "[":
		m.setShift(m.shift - shiftStep)
	case "}":
		m.setShift(m.shift + fineStep)
	case "{":
		m.setShift(m.shift - fineStep)
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		value := strings.TrimSpace(m.text.Value())
		m.submitInput(value, false)
		return m, nil
	case tea.KeyEsc, tea.KeyCtrlC:
		m.submitInput("", true)
		return m, nil
	}
	var cmd tea.Cmd
	m.text, cmd = m.text.Update(msg)
	return m, cmd
}

func (m *Model) openInput(mode inputMode, prompt, value string) {
	m.input = mode
	m.inputPrompt = prompt
	m.inputNote = ""
	m.text.Reset()
	m.text.SetValue(value)
	m.text.Focus()
}

func (m *Model) submitInput(value string, cancel bool) {
	mode := m.input
	m.input = inputNone
	m.text.Blur()

	switch mode {
	case inputLoad:
		if cancel || value == "" {
			return
		}
		m.send(Command{Kind: CmdLoad, Mode: m.mode, Text: value})
	case inputCredential:
		m.send(Command{Kind: CmdCredential, Text: value, Cancel: cancel || value == ""})
	}
}

func (m *Model) setMode(mode SourceMode) {
	if m.loading || mode == m.mode {
		return
	}
	m.mode = mode
	m.send(Command{Kind: CmdSourceMode, Mode: mode})
}

func (m *Model) setVolume(v float64) {
	m.volume = quantize(v)
	m.send(Command{Kind: CmdVolume, Value: m.volume})
}

func (m *Model) setShift(v float64) {
	m.shift = quantize(v)
	m.send(Command{Kind: CmdShift, Value: m.shift})
}

// send delivers a command without ever blocking the UI
func (m Model) send(cmd Command) {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Commands <- cmd:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Active != nil {
		m.active = *msg.Active
	}
	if msg.Loading != nil {
		m.loading = *msg.Loading
	}
	if msg.Mode != "" {
		m.mode = msg.Mode
	}
	if msg.Preset != "" {
		m.preset = msg.Preset
	}
	if msg.Volume != nil {
		m.volume = quantize(*msg.Volume)
	}
	if msg.Status != nil {
		m.status = *msg.Status
	}
}

// quantize clamps to [0, 1] in 0.01 steps
func quantize(v float64) float64 {
	v = math.Round(v*100) / 100
	return math.Max(0, math.Min(1, v))
}

// Utility functions
func renderBar(value float64, width int) string {
	filled := int(math.Round(value * float64(width)))
	filled = max(0, min(width, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	if length <= 3 {
		return string(r[:length])
	}
	return string(r[:length-3]) + "..."
}
