package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

type VersionInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := GetVersionInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "garmin-osm-sync", info.Version)
			fmt.Fprintln(out, "Go Version:", info.GoVersion)
			fmt.Fprintln(out, "OS/Arch:", info.OS+"/"+info.Arch)
		},
	}
}
