package cli

import (
	"context"
	"net/http"

	"github.com/jrsteele09/garmin-osm-sync/auth"
	"github.com/jrsteele09/garmin-osm-sync/garmin"
	"github.com/jrsteele09/garmin-osm-sync/internal/config"
	"github.com/jrsteele09/garmin-osm-sync/ledger"
	"github.com/jrsteele09/garmin-osm-sync/osm"
	"github.com/jrsteele09/garmin-osm-sync/token"
	"github.com/jrsteele09/garmin-osm-sync/tracksync"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type syncFlags struct {
	dryRun bool
	slow   bool
	max    int
}

func newSyncCmd(a *app) *cobra.Command {
	f := &syncFlags{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload new Garmin activities to OpenStreetMap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(config.ScopeSync); err != nil {
				return err
			}
			opts := tracksync.OptionsFromConfig(a.cfg)
			if cmd.Flags().Changed("dry-run") {
				opts.DryRun = f.dryRun
			}
			if cmd.Flags().Changed("slow") {
				opts.Mode = tracksync.ModeNormal
				if f.slow {
					opts.Mode = tracksync.ModeBoundedSlow
				}
			}
			if cmd.Flags().Changed("max") {
				opts.MaxActivities = f.max
			}
			return runSync(cmd.Context(), a.cfg, opts)
		},
	}
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Download and record activities without uploading")
	cmd.Flags().BoolVar(&f.slow, "slow", false, "Process only the oldest few new activities with a longer delay")
	cmd.Flags().IntVar(&f.max, "max", 0, "Number of recent activities to fetch")
	return cmd
}

func runSync(ctx context.Context, cfg config.Config, opts tracksync.Options) error {
	httpClient := &http.Client{Timeout: cfg.GetHTTPTimeout()}

	authService, err := newAuthService(ctx, cfg, httpClient)
	if err != nil {
		return err
	}

	repo, err := ledger.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := repo.Close(); cerr != nil {
			log.Ctx(ctx).Err(cerr).Msg("Failed to close ledger")
		}
	}()

	source, err := garmin.NewHTTPClient(garmin.Options{
		SSOURL:     cfg.GetGarminSSOURL(),
		ConnectURL: cfg.GetGarminConnectURL(),
		Email:      cfg.GetGarminEmail(),
		Password:   cfg.GetGarminPassword(),
		Timeout:    cfg.GetHTTPTimeout(),
	})
	if err != nil {
		return err
	}
	uploader := osm.NewHTTPUploader(cfg.GetOSMBaseURL(), httpClient)

	orch := tracksync.NewOrchestrator(authService, source, uploader, repo, cfg.GetDownloadDir(),
		tracksync.WithTraceLinks(cfg.GetOSMBaseURL(), cfg.GetOSMUsername()),
	)
	summary, err := orch.Run(ctx, opts)
	for _, r := range summary.Results {
		if r.Outcome == tracksync.OutcomeFailed {
			log.Ctx(ctx).Warn().Str("activity_id", r.ActivityID).AnErr("error", r.Err).Msg("Activity not uploaded")
		}
	}
	return err
}

func newAuthService(ctx context.Context, cfg config.Config, httpClient *http.Client) (*auth.Service, error) {
	return auth.NewService(ctx, cfg, token.NewFileStore(cfg.GetTokensFile()), auth.WithHTTPClient(httpClient))
}
