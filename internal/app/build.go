// ABOUTME: Composition root wiring config into a running visualizer
// ABOUTME: Chooses the gateway, the credential store and the render engines
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/visual-lock/visuallock/internal/analyzer"
	"github.com/visual-lock/visuallock/internal/config"
	"github.com/visual-lock/visuallock/internal/credential"
	"github.com/visual-lock/visuallock/internal/discovery"
	"github.com/visual-lock/visuallock/internal/engine/remote"
	"github.com/visual-lock/visuallock/internal/engine/terminal"
	"github.com/visual-lock/visuallock/internal/gateway"
	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/internal/playback"
	"github.com/visual-lock/visuallock/internal/render"
	"github.com/visual-lock/visuallock/internal/resolver"
	"github.com/visual-lock/visuallock/internal/ui"
	"github.com/visual-lock/visuallock/pkg/audio"
	"github.com/visual-lock/visuallock/pkg/audio/capture"
	"github.com/visual-lock/visuallock/pkg/audio/output"
)

// discoveryTimeout bounds the mDNS search for a gateway at startup
const discoveryTimeout = 2 * time.Second

// Options are the pieces the caller supplies to Build
type Options struct {
	// Prompter answers credential prompts; nil disables recovery
	Prompter credential.Prompter
	// Notify receives session status changes
	Notify func(ui.StatusMsg)
	// Silent skips the audio output device
	Silent bool
	// ReservedRows are kept free below the visual for the status panel
	ReservedRows int
}

// Runtime is a fully wired visualizer
type Runtime struct {
	Session    *Session
	Graph      *analyzer.Graph
	Controller *render.Controller
	Terminal   *terminal.Engine
	Remote     *remote.Engine
	Window     *terminal.Window
	Store      credential.Store
	Chain      *credential.Chain
	Resolver   *resolver.Client
	Gateway    *gateway.Server
}

// Build wires every component from cfg
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.Store = store
	rt.Chain = credential.NewChain(store, cfg.DefaultClientID)

	baseURL, gw, err := SelectGateway(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Gateway = gw
	rt.Resolver = resolver.NewClient(resolver.Config{
		BaseURL:      baseURL,
		UpstreamURL:  cfg.UpstreamURL,
		StageTimeout: cfg.StageTimeout,
	})

	rt.Terminal = terminal.New()
	rt.Window = terminal.NewWindow(opts.ReservedRows)
	engines := render.MultiEngine{rt.Terminal}
	if cfg.RemoteAddr != "" {
		rt.Remote = remote.New(remote.Config{Addr: cfg.RemoteAddr})
		if err := rt.Remote.Start(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to start visual mirror: %w", err)
		}
		engines = append(engines, rt.Remote)
	}

	var session *Session
	format := audio.Format{SampleRate: cfg.SampleRate, Channels: 2}
	rt.Graph = analyzer.NewGraph(analyzer.Config{
		NewContext: func() (*analyzer.Context, error) {
			if opts.Silent {
				return analyzer.NewContext(nil, format)
			}
			return analyzer.NewContext(output.Shared(), format)
		},
		OnEnded: func(kind analyzer.SourceKind, err error) {
			session.SourceEnded(kind, err)
		},
	})

	rt.Controller = render.NewController(engines, rt.Graph, terminal.Presets{}, render.Options{
		FrameInterval:  cfg.FrameInterval(),
		CycleInterval:  cfg.CycleInterval,
		ShowcasePreset: cfg.ShowcasePreset,
		Window:         rt.Window,
		OnPreset: func(name string) {
			session.PresetChanged(name)
		},
	})

	var recovery *credential.Recovery
	if opts.Prompter != nil {
		recovery = credential.NewRecovery(store, opts.Prompter)
	}

	session = NewSession(Config{
		Graph:    rt.Graph,
		Loop:     rt.Controller,
		Sources:  playback.NewOpener(playback.Config{Capture: captureConfig(cfg)}),
		Resolver: rt.Resolver,
		Chain:    rt.Chain,
		Recovery: recovery,
		Window:   rt.Window,
		Notify:   opts.Notify,
		Volume:   cfg.Volume,
	})
	rt.Session = session
	return rt, nil
}

// Close releases everything Build started
func (rt *Runtime) Close() {
	if rt.Session != nil {
		rt.Session.Close()
	}
	if rt.Graph != nil {
		rt.Graph.Close()
	}
	if rt.Remote != nil {
		if err := rt.Remote.Stop(); err != nil {
			logger.Warn("Visual mirror shutdown error", logger.ErrorField(err))
		}
	}
	if rt.Gateway != nil {
		rt.Gateway.Stop()
		if err := rt.Gateway.Wait(); err != nil {
			logger.Warn("Embedded gateway error", logger.ErrorField(err))
		}
	}
	if rt.Store != nil {
		rt.Store.Close()
	}
}

// OpenStore picks Redis when configured, otherwise the watched credential file
func OpenStore(ctx context.Context, cfg *config.Config) (credential.Store, error) {
	if cfg.RedisAddr != "" {
		store, err := credential.NewRedisStore(ctx, credential.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open credential store: %w", err)
		}
		return store, nil
	}

	store, err := credential.NewFileStore(cfg.CredentialFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	if err := store.Watch(); err != nil {
		// Still usable, edits just need a restart
		logger.Warn("Credential file watch unavailable", logger.ErrorField(err))
	}
	return store, nil
}

// SelectGateway returns the resolver base URL: the configured one, a gateway
// found over mDNS, or an embedded gateway on loopback. The embedded server is
// returned so the caller can stop it.
func SelectGateway(ctx context.Context, cfg *config.Config) (string, *gateway.Server, error) {
	if cfg.GatewayURL != "" {
		logger.Info("Using configured gateway", logger.String("url", cfg.GatewayURL))
		return cfg.GatewayURL, nil, nil
	}

	if cfg.Advertise {
		info, err := discovery.FindGateway(ctx, discoveryTimeout)
		if err == nil {
			logger.Info("Discovered gateway", logger.String("name", info.Name), logger.String("url", info.BaseURL()))
			return info.BaseURL(), nil, nil
		}
		logger.Debug("No gateway on the network", logger.ErrorField(err))
	}

	gw := gateway.New(gateway.Config{
		Addr:        "127.0.0.1:0",
		Prefix:      cfg.GatewayPrefix,
		UpstreamURL: cfg.UpstreamURL,
		WrapErrors:  cfg.WrapErrors,
	})
	if err := gw.Start(); err != nil {
		return "", nil, fmt.Errorf("failed to start embedded gateway: %w", err)
	}
	logger.Info("Started embedded gateway", logger.String("url", gw.BaseURL()))
	return gw.BaseURL(), gw, nil
}

func captureConfig(cfg *config.Config) capture.Config {
	return capture.Config{SampleRate: cfg.SampleRate, Channels: 1}
}
