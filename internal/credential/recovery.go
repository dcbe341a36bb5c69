// ABOUTME: Interactive recovery from rejected credentials
// ABOUTME: Saves a replacement and asks the caller to load again
package credential

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/internal/resolver"
)

// PromptMessage is shown when the upstream rejects the credential
const PromptMessage = "SoundCloud Access Denied (401/403).\n\n" +
	"The builtin Client ID is outdated or blocked. Please enter a valid 'client_id' " +
	"from SoundCloud website (F12 -> Network -> Filter: 'client_id')."

// ErrRetryRequired means a new credential was saved and the load must be repeated
var ErrRetryRequired = errors.New("New Client ID saved. Please load again.")

// Prompter asks the user for a replacement credential.
// An empty answer means the user declined.
type Prompter interface {
	PromptCredential(ctx context.Context, message, current string) (string, error)
}

// PrompterFunc adapts a function to Prompter
type PrompterFunc func(ctx context.Context, message, current string) (string, error)

func (f PrompterFunc) PromptCredential(ctx context.Context, message, current string) (string, error) {
	return f(ctx, message, current)
}

// Recovery turns an auth failure into a stored replacement credential
type Recovery struct {
	store  Store
	prompt Prompter
}

// NewRecovery creates a recovery handler
func NewRecovery(store Store, prompt Prompter) *Recovery {
	return &Recovery{store: store, prompt: prompt}
}

// Handle inspects a resolve error. Non-auth errors pass through unchanged.
// For auth errors the user is asked for a replacement; a new value is saved
// and ErrRetryRequired returned, otherwise the auth error is returned.
func (r *Recovery) Handle(ctx context.Context, err error, used string) error {
	if !resolver.IsAuthDenied(err) {
		return err
	}
	if r.prompt == nil || r.store == nil {
		return err
	}

	answer, perr := r.prompt.PromptCredential(ctx, PromptMessage, used)
	if perr != nil {
		logger.Warn("Credential prompt failed", logger.ErrorField(perr))
		return err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" || answer == used {
		return err
	}

	if serr := r.store.Save(ctx, answer); serr != nil {
		return fmt.Errorf("failed to save credential: %w", serr)
	}
	logger.Info("Replacement credential stored")
	return ErrRetryRequired
}

// LinePrompter reads a single line answer from in
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter creates a prompter over a reader and writer, e.g. stdin and stderr
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

func (p *LinePrompter) PromptCredential(ctx context.Context, message, current string) (string, error) {
	fmt.Fprintf(p.out, "%s\n[%s]: ", message, current)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.line), nil
	}
}
