package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/garmin-osm-sync/internal/config"
	"github.com/jrsteele09/garmin-osm-sync/internal/logging"
	"github.com/spf13/cobra"
)

// GlobalFlags are available to every command.
type GlobalFlags struct {
	Config    string
	LogLevel  string
	LogFormat string
	NoBanner  bool
}

type app struct {
	flags GlobalFlags
	cfg   config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "garmin-osm-sync",
		Short: "Upload new Garmin Connect activities to OpenStreetMap as GPS traces",
		Long: `garmin-osm-sync downloads recent activities from Garmin Connect and uploads each one
that has not been uploaded before to OpenStreetMap as a GPX trace.

Configuration is read from config.yaml (or --config / CONFIG_PATH) and environment
variables such as GARMIN_EMAIL, GARMIN_PASSWORD, OSM_CLIENT_ID, OSM_CLIENT_SECRET and
REDIRECT_URI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.flags.Config, "config", os.Getenv(config.ConfigPathEnvVar), "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&a.flags.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.flags.LogFormat, "log-format", "", "Log format (console, json)")
	root.PersistentFlags().BoolVar(&a.flags.NoBanner, "no-banner", false, "Do not print the banner")

	root.AddCommand(
		newSyncCmd(a),
		newAuthorizeCmd(a),
		newLedgerCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

// load reads the configuration and sets up logging before any subcommand runs.
func (a *app) load(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	var err error
	if a.flags.Config != "" {
		a.cfg, err = config.NewFromFile(a.flags.Config)
	} else {
		a.cfg, err = config.New()
	}
	if err != nil {
		return err
	}

	level := a.cfg.GetLogLevel()
	if a.flags.LogLevel != "" {
		level = a.flags.LogLevel
	}
	format := a.cfg.GetLogFormat()
	if a.flags.LogFormat != "" {
		format = a.flags.LogFormat
	}
	logging.Init(logging.Config{Level: level, Format: format, Output: cmd.ErrOrStderr()})

	ctx, _ := logging.WithRunID(cmd.Context())
	cmd.SetContext(ctx)

	if !a.flags.NoBanner {
		displayAppname(cmd.OutOrStdout(), a.cfg.GetAppName())
	}
	return nil
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(w, myFigure.String())
}
