package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/garmin-osm-sync/internal/config"
	"github.com/jrsteele09/garmin-osm-sync/internal/utils"
	"github.com/jrsteele09/garmin-osm-sync/ledger"
	"github.com/spf13/cobra"
)

func newLedgerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and maintain the processed-activity ledger",
	}
	cmd.AddCommand(newLedgerMigrateCmd(a), newLedgerListCmd(a))
	return cmd
}

func newLedgerMigrateCmd(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy ids from the legacy text ledger into the SQLite ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(config.ScopeLedger); err != nil {
				return err
			}
			if from == "" {
				from = a.cfg.GetProcessedActivitiesFile()
			}
			ctx := cmd.Context()
			repo, err := ledger.OpenSQLite(ctx, a.cfg.GetDBFile())
			if err != nil {
				return err
			}
			defer repo.Close()

			report, err := ledger.MigrateText(ctx, from, repo)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migration done: %d read, %d inserted, %d already present\n",
				report.Read, report.Inserted, report.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Legacy processed ids file (default PROCESSED_ACTIVITIES_FILE)")
	return cmd
}

func newLedgerListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List processed activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(config.ScopeLedger); err != nil {
				return err
			}
			ctx := cmd.Context()
			repo, err := ledger.Open(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			entries, err := repo.List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACTIVITY\tSTATUS\tGPX ID\tUPLOADED AT")
			for _, e := range entries {
				uploadedAt := ""
				if !e.UploadedAt.IsZero() {
					uploadedAt = e.UploadedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ActivityID, e.Status, utils.Value(e.RemoteTrackID), uploadedAt)
			}
			return tw.Flush()
		},
	}
}
