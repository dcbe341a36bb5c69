// ABOUTME: Runs the visualizer with the TUI or headless
// ABOUTME: Headless mode plays straight away and is meant for websocket viewers
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visual-lock/visuallock/internal/app"
	"github.com/visual-lock/visuallock/internal/config"
	"github.com/visual-lock/visuallock/internal/credential"
	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/internal/ui"
)

type visualizeOptions struct {
	mic      bool
	file     string
	url      string
	noTUI    bool
	silent   bool
	gateway  string
	remote   string
	logLevel string
}

func (o *visualizeOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&o.mic, "mic", false, "Start with the microphone (the default)")
	f.StringVar(&o.file, "file", "", "Load a local audio file (MP3, FLAC, WAV, OGG)")
	f.StringVar(&o.url, "url", "", "Load a SoundCloud track or a direct audio URL")
	f.BoolVar(&o.noTUI, "no-tui", false, "Run headless and play immediately, logging to stdout")
	f.BoolVar(&o.silent, "silent", false, "Analyse without sending audio to the output device")
	f.StringVar(&o.gateway, "gateway", "", "Resolver gateway base URL (skips discovery)")
	f.StringVar(&o.remote, "remote", "", "Serve the visual to websocket viewers on this address")
	f.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// apply lets flags override the environment
func (o *visualizeOptions) apply(cfg *config.Config) {
	if o.gateway != "" {
		cfg.GatewayURL = o.gateway
	}
	if o.remote != "" {
		cfg.RemoteAddr = o.remote
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
}

// initialSource picks the starting mode from the flags
func initialSource(mic bool, file, url string) (ui.SourceMode, string, error) {
	switch {
	case file != "" && url != "", mic && (file != "" || url != ""):
		return "", "", errors.New("--mic, --file and --url are mutually exclusive")
	case file != "":
		return ui.ModeFile, file, nil
	case url != "":
		return ui.ModeURL, url, nil
	}
	return ui.ModeMic, "", nil
}

func runVisualizer(cmd *cobra.Command, opts *visualizeOptions) error {
	mode, input, err := initialSource(opts.mic, opts.file, opts.url)
	if err != nil {
		return err
	}

	cfg := config.Load()
	opts.apply(cfg)
	if err := setupLogging(cfg, opts.noTUI); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.noTUI {
		return runHeadless(ctx, cmd, cfg, opts, mode, input)
	}
	return runTUI(ctx, cfg, opts, mode, input)
}

func runTUI(ctx context.Context, cfg *config.Config, opts *visualizeOptions, mode ui.SourceMode, input string) error {
	var prog atomic.Pointer[tea.Program]
	send := func(msg tea.Msg) {
		if p := prog.Load(); p != nil {
			p.Send(msg)
		}
	}
	bridge := app.NewPromptBridge(send)

	rt, err := app.Build(ctx, cfg, app.Options{
		Prompter:     bridge,
		Notify:       func(msg ui.StatusMsg) { send(msg) },
		Silent:       opts.silent,
		ReservedRows: ui.PanelHeight,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctrl := ui.NewControls()
	p := ui.Run(ctrl, rt.Terminal)
	prog.Store(p)

	if input != "" {
		ctrl.Commands <- ui.Command{Kind: ui.CmdSourceMode, Mode: mode}
		ctrl.Commands <- ui.Command{Kind: ui.CmdLoad, Mode: mode, Text: input}
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		rt.Session.Dispatch(dispatchCtx, ctrl, bridge)
		close(done)
	}()
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	logger.Info("Visualizer started", logger.String("mode", string(mode)))
	_, err = p.Run()
	cancel()
	<-done
	return err
}

func runHeadless(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts *visualizeOptions, mode ui.SourceMode, input string) error {
	rt, err := app.Build(ctx, cfg, app.Options{
		Prompter: credential.NewLinePrompter(cmd.InOrStdin(), cmd.ErrOrStderr()),
		Notify:   logStatus,
		Silent:   opts.silent,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	if input != "" {
		rt.Session.SetMode(mode)
		if err := rt.Session.Load(ctx, input); err != nil {
			return err
		}
	}
	if err := rt.Session.Play(); err != nil {
		return err
	}
	if rt.Remote != nil {
		if addr, err := rt.Remote.Addr(); err == nil {
			logger.Info("Visual mirror ready", logger.String("addr", addr))
		}
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

// logStatus writes session status changes to the log in headless mode
func logStatus(msg ui.StatusMsg) {
	var fields []zap.Field
	if msg.Active != nil {
		fields = append(fields, logger.Bool("active", *msg.Active))
	}
	if msg.Loading != nil {
		fields = append(fields, logger.Bool("loading", *msg.Loading))
	}
	if msg.Mode != "" {
		fields = append(fields, logger.String("mode", string(msg.Mode)))
	}
	if msg.Preset != "" {
		fields = append(fields, logger.String("preset", msg.Preset))
	}
	if msg.Volume != nil {
		fields = append(fields, logger.Float64("volume", *msg.Volume))
	}
	if msg.Status != nil && *msg.Status != "" {
		fields = append(fields, logger.String("status", *msg.Status))
	}
	if len(fields) > 0 {
		logger.Info("Status", fields...)
	}
}
