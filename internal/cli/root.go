// ABOUTME: Cobra command tree for the visualizer binary
// ABOUTME: The root command runs the visualizer, subcommands cover resolve, gateway and version
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/visual-lock/visuallock/internal/config"
	"github.com/visual-lock/visuallock/internal/logger"
)

// NewRootCmd builds the full command tree
func NewRootCmd() *cobra.Command {
	opts := &visualizeOptions{}
	root := &cobra.Command{
		Use:           "visuallock",
		Short:         "VISUAL LOCK is an audio-reactive terminal visualizer.",
		Long:          "Visualize the microphone, a local file, or a SoundCloud track in the terminal.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVisualizer(cmd, opts)
		},
	}
	opts.bind(root)

	root.AddCommand(newResolveCmd())
	root.AddCommand(NewGatewayCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging sends logs to the rotated file, and to stdout when the
// terminal is not owned by the TUI
func setupLogging(cfg *config.Config, console bool) error {
	return logger.Init(logger.Config{
		Level:      logger.Level(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		Console:    console,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
	})
}
