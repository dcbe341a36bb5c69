// ABOUTME: watch subcommand following a visual mirror from another terminal
// ABOUTME: Prints the mirrored band energies as a one-line meter
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/visual-lock/visuallock/internal/client"
	"github.com/visual-lock/visuallock/internal/protocol"
	"github.com/visual-lock/visuallock/internal/version"
)

const meterWidth = 12

var presetStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

func newWatchCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "watch <host:port>",
		Short: "Follow the visual mirror of a running visualizer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cmd.OutOrStdout(), client.Config{
				ServerAddr: args[0],
				ClientID:   uuid.NewString(),
				Name:       name,
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", version.Product+" viewer", "Viewer name sent in the handshake")
	return cmd
}

// watch prints one meter line per frame until ctx ends or the mirror hangs up
func watch(ctx context.Context, out io.Writer, cfg client.Config) error {
	c := client.NewClient(cfg)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	fmt.Fprintf(out, "Connected to %s\n", c.Server().Name)
	preset := ""
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case <-c.Done():
			fmt.Fprintln(out)
			return fmt.Errorf("mirror closed the connection")
		case p := <-c.Presets:
			preset = p.Name
		case <-c.Sizes:
		case f := <-c.Frames:
			fmt.Fprintf(out, "\r%s %s", presetStyle.Render(truncateName(preset, 32)), meterLine(f))
		}
	}
}

// meterLine draws the four bands, each clamped to [0, 1]
func meterLine(f protocol.Frame) string {
	bands := []struct {
		label string
		v     float64
	}{
		{"sub", f.Sub}, {"bass", f.Bass}, {"mid", f.Mid}, {"high", f.High},
	}
	parts := make([]string, 0, len(bands))
	for _, b := range bands {
		v := b.v
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		filled := int(v*meterWidth + 0.5)
		parts = append(parts, fmt.Sprintf("%s %s%s", b.label,
			strings.Repeat("█", filled), strings.Repeat("░", meterWidth-filled)))
	}
	return strings.Join(parts, "  ")
}

func truncateName(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return fmt.Sprintf("%-*s", n, s)
	}
	return string(r[:n-3]) + "..."
}
