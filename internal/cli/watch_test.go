// ABOUTME: Tests for the watch command against a live mirror
// ABOUTME: Also checks the meter line rendering
package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/visual-lock/visuallock/internal/client"
	"github.com/visual-lock/visuallock/internal/engine/remote"
	"github.com/visual-lock/visuallock/internal/protocol"
	"github.com/visual-lock/visuallock/internal/render"
	"github.com/visual-lock/visuallock/pkg/audio"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMeterLine(t *testing.T) {
	line := meterLine(protocol.Frame{Sub: 0, Bass: 0.5, Mid: 1, High: 2})
	want := "sub ░░░░░░░░░░░░  bass ██████░░░░░░  mid ████████████  high ████████████"
	if line != want {
		t.Errorf("meterLine = %q\nwant        %q", line, want)
	}
}

func TestTruncateName(t *testing.T) {
	if got := truncateName("abc", 5); got != "abc  " {
		t.Errorf("pad = %q", got)
	}
	if got := truncateName("abcdefgh", 6); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
}

func TestWatchFollowsMirror(t *testing.T) {
	e := remote.New(remote.Config{Addr: "127.0.0.1:0", Name: "test mirror"})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()
	addr, err := e.Addr()
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- watch(ctx, out, client.Config{ServerAddr: addr, ClientID: "watcher", Name: "watcher"})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for e.Viewers() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("viewer never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}

	e.LoadPreset(render.Preset{Name: "Flexi - mindblob"}, 0)
	for {
		e.Render(audio.BandEnergies{Sub: 1, Bass: 1, Mid: 1, High: 1})
		s := out.String()
		if strings.Contains(s, "Flexi - mindblob") && strings.Contains(s, "sub ████████████") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("output = %q", s)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.HasPrefix(out.String(), "Connected to test mirror") {
		t.Errorf("output = %q", out.String())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return")
	}
}

func TestWatchConnectFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := watch(ctx, &bytes.Buffer{}, client.Config{ServerAddr: "127.0.0.1:1", ClientID: "x"})
	if err == nil {
		t.Error("expected dial error")
	}
}
