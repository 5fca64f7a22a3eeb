package cli

import (
	"net/http"

	"github.com/jrsteele09/garmin-osm-sync/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newAuthorizeCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Obtain or refresh the OpenStreetMap access token",
		Long: `authorize makes sure a usable OpenStreetMap token is stored. It reuses a fresh token,
refreshes an expired one, or opens the browser for the authorization code flow.
With --force the browser flow always runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(config.ScopeAuthorize); err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, err := newAuthService(ctx, a.cfg, &http.Client{Timeout: a.cfg.GetHTTPTimeout()})
			if err != nil {
				return err
			}
			if force {
				_, err = svc.Authorize(ctx)
			} else {
				_, err = svc.EnsureAccessToken(ctx)
			}
			if err != nil {
				return err
			}
			log.Ctx(ctx).Info().Str("tokens_file", a.cfg.GetTokensFile()).Msg("OpenStreetMap authorization is ready")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Always run the browser authorization flow")
	return cmd
}
