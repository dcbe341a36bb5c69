// ABOUTME: resolve subcommand printing the stream URL of a track reference
// ABOUTME: Prompts for a replacement credential on stdin when the upstream rejects it
package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/visual-lock/visuallock/internal/app"
	"github.com/visual-lock/visuallock/internal/config"
	"github.com/visual-lock/visuallock/internal/credential"
	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/internal/resolver"
)

func newResolveCmd() *cobra.Command {
	var (
		gatewayURL string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <reference>...",
		Short: "Resolve a SoundCloud track or playlist to a playable stream URL",
		Long: "Resolve a track reference through the gateway. Several arguments are joined with \"/\", " +
			"so both \"artist/track\" and \"artist track\" work.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if gatewayURL != "" {
				cfg.GatewayURL = gatewayURL
			}
			if err := setupLogging(cfg, false); err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			store, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			baseURL, gw, err := app.SelectGateway(ctx, cfg)
			if err != nil {
				return err
			}
			if gw != nil {
				defer func() {
					gw.Stop()
					gw.Wait()
				}()
			}

			client := resolver.NewClient(resolver.Config{
				BaseURL:      baseURL,
				UpstreamURL:  cfg.UpstreamURL,
				StageTimeout: cfg.StageTimeout,
			})
			chain := credential.NewChain(store, cfg.DefaultClientID)
			recovery := credential.NewRecovery(store, credential.NewLinePrompter(cmd.InOrStdin(), cmd.ErrOrStderr()))
			ref := resolver.NewReference(args...)

			used := chain.Current(ctx)
			media, err := client.Resolve(ctx, ref, used)
			if err != nil {
				err = recovery.Handle(ctx, err, used)
				if !errors.Is(err, credential.ErrRetryRequired) {
					return err
				}
				// One retry with the credential just saved
				media, err = client.Resolve(ctx, ref, chain.Current(ctx))
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"title":     media.Title,
					"url":       media.URI,
					"segmented": media.Segmented,
					"mime_type": media.MimeType,
				})
			}
			fmt.Fprintln(out, media.URI)
			return nil
		},
	}
	cmd.Flags().StringVar(&gatewayURL, "gateway", "", "Resolver gateway base URL (skips discovery)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print title, URL and format as JSON")
	return cmd
}
