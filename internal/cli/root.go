// Package cli implements the sahayata command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/sahayata-dashboard/internal/config"
)

// version is set at build time with -ldflags "-X .../internal/cli.version=...".
var version = "dev"

var cfgFile string

// rootCmd runs the service when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "sahayata",
	Short: "Sahayata India disaster relief dashboard",
	Long: `Sahayata serves the disaster relief dashboard for India: a live hazard
heat map (NASA fire detections, USGS earthquakes, GDACS alerts), the critical
incidents panel, and the volunteer, donation and help request forms, all backed
by the remote relief API.

Configuration comes from environment variables (HTTP_ADDR, BACKEND_BASE_URL,
...) and, optionally, a YAML file using the same keys in lower case.
Environment variables win over the file.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sahayata %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (optional)")
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
