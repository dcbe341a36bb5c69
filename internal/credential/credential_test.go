// ABOUTME: Tests for credential tiers, stores and recovery
// ABOUTME: Uses a temp dir for the file store and fake prompters
package credential

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/visual-lock/visuallock/internal/resolver"
)

func TestChainCurrent(t *testing.T) {
	tests := []struct {
		name     string
		override string
		def      string
		want     string
	}{
		{"override wins", "custom", "env", "custom"},
		{"default when no override", "", "env", "env"},
		{"builtin last", "", "", BuiltinClientID},
		{"blank override ignored", "   ", "env", "env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MemoryStore{}
			store.Save(context.Background(), tt.override)
			c := NewChain(store, tt.def)
			if got := c.Current(context.Background()); got != tt.want {
				t.Errorf("Current() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChainNilStore(t *testing.T) {
	c := NewChain(nil, "")
	if got := c.Current(context.Background()); got != BuiltinClientID {
		t.Errorf("Current() = %q, want builtin", got)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credential.json")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close()

	if v, _ := s.Load(context.Background()); v != "" {
		t.Errorf("expected empty store, got %q", v)
	}
	if err := s.Save(context.Background(), "abc123"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if !strings.Contains(string(data), `"vl_sc_client_id": "abc123"`) {
		t.Errorf("unexpected file contents: %s", data)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if v, _ := reopened.Load(context.Background()); v != "abc123" {
		t.Errorf("reopened value = %q, want abc123", v)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	if err := os.WriteFile(path, []byte("{oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestFileStoreWatchPicksUpExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close()

	if err := s.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"vl_sc_client_id":"edited"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := s.Load(context.Background()); v == "edited" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	v, _ := s.Load(context.Background())
	t.Fatalf("watcher did not pick up edit, value = %q", v)
}

func TestFileStoreCloseIdempotent(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "c.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Watch(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedisStore(ctx, RedisOptions{Addr: "127.0.0.1:1"}); err == nil {
		t.Error("expected connection error")
	}
}

func authDenied() error {
	return &resolver.Error{Kind: resolver.KindAuthDenied, Status: 403}
}

func TestRecoveryHandle(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		answer    string
		promptErr error
		wantErr   error
		wantSaved string
		wantAsked bool
	}{
		{"new credential saved", authDenied(), "fresh", nil, ErrRetryRequired, "fresh", true},
		{"same credential declined", authDenied(), "used", nil, resolver.ErrAuthDenied, "", true},
		{"empty answer declined", authDenied(), "  ", nil, resolver.ErrAuthDenied, "", true},
		{"prompt failure", authDenied(), "", errors.New("closed"), resolver.ErrAuthDenied, "", true},
		{"not an auth error", &resolver.Error{Kind: resolver.KindNotFound}, "x", nil, resolver.ErrNotFound, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MemoryStore{}
			asked := false
			prompt := PrompterFunc(func(ctx context.Context, message, current string) (string, error) {
				asked = true
				if current != "used" {
					t.Errorf("prompt current = %q, want used", current)
				}
				if !strings.Contains(message, "401/403") {
					t.Errorf("unexpected prompt message %q", message)
				}
				return tt.answer, tt.promptErr
			})

			err := NewRecovery(store, prompt).Handle(context.Background(), tt.err, "used")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Handle() = %v, want %v", err, tt.wantErr)
			}
			if asked != tt.wantAsked {
				t.Errorf("asked = %v, want %v", asked, tt.wantAsked)
			}
			if v, _ := store.Load(context.Background()); v != tt.wantSaved {
				t.Errorf("stored = %q, want %q", v, tt.wantSaved)
			}
		})
	}
}

func TestRecoveryFeedsChain(t *testing.T) {
	store := &MemoryStore{}
	chain := NewChain(store, "env-id")
	rec := NewRecovery(store, PrompterFunc(func(ctx context.Context, message, current string) (string, error) {
		return "replacement", nil
	}))

	used := chain.Current(context.Background())
	if err := rec.Handle(context.Background(), authDenied(), used); !errors.Is(err, ErrRetryRequired) {
		t.Fatalf("expected ErrRetryRequired, got %v", err)
	}
	if got := chain.Current(context.Background()); got != "replacement" {
		t.Errorf("Current() after recovery = %q, want replacement", got)
	}
}

func TestLinePrompter(t *testing.T) {
	var out strings.Builder
	p := NewLinePrompter(strings.NewReader("  new-id \n"), &out)

	got, err := p.PromptCredential(context.Background(), "msg", "old")
	if err != nil {
		t.Fatalf("PromptCredential failed: %v", err)
	}
	if got != "new-id" {
		t.Errorf("answer = %q, want new-id", got)
	}
	if !strings.Contains(out.String(), "msg") || !strings.Contains(out.String(), "[old]") {
		t.Errorf("unexpected prompt output %q", out.String())
	}
}

func TestLinePrompterEOFWithoutNewline(t *testing.T) {
	p := NewLinePrompter(strings.NewReader("tail"), &strings.Builder{})
	got, err := p.PromptCredential(context.Background(), "m", "c")
	if err != nil || got != "tail" {
		t.Errorf("got %q, %v", got, err)
	}
}
