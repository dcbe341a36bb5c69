// ABOUTME: Dispatches UI commands to the session
// ABOUTME: Bridges credential prompts between the resolver and the TUI
package app

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/internal/ui"
)

// Dispatch handles UI commands until ctx ends or the user quits.
// Loads run in their own goroutine so a credential prompt can be answered
// while the resolver waits.
func (s *Session) Dispatch(ctx context.Context, ctrl *ui.Controls, prompts *PromptBridge) {
	var loads sync.WaitGroup
	defer loads.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ctrl.Quit:
			return
		case cmd := <-ctrl.Commands:
			switch cmd.Kind {
			case ui.CmdTogglePlay:
				if err := s.TogglePlay(); err != nil {
					logger.Debug("Play failed", logger.ErrorField(err))
				}
			case ui.CmdSourceMode:
				s.SetMode(cmd.Mode)
			case ui.CmdLoad:
				loads.Add(1)
				go func(text string) {
					defer loads.Done()
					if err := s.Load(ctx, text); err != nil {
						logger.Warn("Load failed", logger.String("input", text), logger.ErrorField(err))
					}
				}(cmd.Text)
			case ui.CmdVolume:
				s.SetVolume(cmd.Value)
			case ui.CmdShift:
				s.SetShift(cmd.Value)
			case ui.CmdResize:
				s.Resize(cmd.Width, cmd.Height)
			case ui.CmdCredential:
				if prompts != nil {
					prompts.Answer(cmd.Text, cmd.Cancel)
				}
			}
		}
	}
}

// PromptBridge implements credential.Prompter on top of the TUI
type PromptBridge struct {
	mu      sync.Mutex
	send    func(tea.Msg)
	answers chan string
}

// NewPromptBridge forwards prompts through send, usually tea.Program.Send
func NewPromptBridge(send func(tea.Msg)) *PromptBridge {
	return &PromptBridge{send: send, answers: make(chan string, 1)}
}

// PromptCredential shows the prompt and waits for the answer
func (b *PromptBridge) PromptCredential(ctx context.Context, message, current string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Drop a stale answer from an earlier, abandoned prompt
	select {
	case <-b.answers:
	default:
	}

	b.send(ui.CredentialPromptMsg{Message: message, Current: current})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case answer := <-b.answers:
		return answer, nil
	}
}

// Answer delivers the user's reply; a cancel is an empty answer
func (b *PromptBridge) Answer(text string, cancel bool) {
	if cancel {
		text = ""
	}
	select {
	case b.answers <- text:
	default:
	}
}
