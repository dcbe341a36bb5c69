// ABOUTME: gateway subcommand running the standalone relay
// ABOUTME: Advertises itself over mDNS so visualizers on the network find it
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/visual-lock/visuallock/internal/config"
	"github.com/visual-lock/visuallock/internal/gateway"
	"github.com/visual-lock/visuallock/internal/logger"
)

// NewGatewayCmd builds the gateway command; the standalone gateway binary uses it as its root
func NewGatewayCmd() *cobra.Command {
	var (
		addr       string
		name       string
		prefix     string
		noMDNS     bool
		wrapErrors bool
	)
	cmd := &cobra.Command{
		Use:          "gateway",
		Short:        "Run the SoundCloud API relay",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := setupLogging(cfg, true); err != nil {
				return err
			}
			defer logger.Sync()

			if addr == "" {
				addr = cfg.GatewayAddr
			}
			if prefix == "" {
				prefix = cfg.GatewayPrefix
			}
			if name == "" {
				hostname, err := os.Hostname()
				if err != nil {
					hostname = "unknown"
				}
				name = fmt.Sprintf("%s-visuallock-gateway", hostname)
			}

			srv := gateway.New(gateway.Config{
				Addr:        addr,
				Name:        name,
				Prefix:      prefix,
				UpstreamURL: cfg.UpstreamURL,
				WrapErrors:  wrapErrors || cfg.WrapErrors,
				EnableMDNS:  cfg.Advertise && !noMDNS,
			})
			if err := srv.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				logger.Info("Received shutdown signal")
				srv.Stop()
			}()

			logger.Info("Gateway started", logger.String("name", name), logger.String("url", srv.BaseURL()))
			err := srv.Wait()
			logger.Info("Gateway stopped")
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "Listen address (default from VL_GATEWAY_ADDR or :8927)")
	f.StringVar(&name, "name", "", "Friendly name for mDNS (default: hostname-visuallock-gateway)")
	f.StringVar(&prefix, "prefix", "", "Path prefix for relayed requests (default /sc-api)")
	f.BoolVar(&noMDNS, "no-mdns", false, "Disable mDNS advertisement")
	f.BoolVar(&wrapErrors, "wrap-errors", false, "Wrap upstream errors in a JSON envelope")
	return cmd
}
