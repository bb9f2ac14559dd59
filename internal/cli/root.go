// Package cli is the keepsake command line: the API server and the small
// operator commands around it.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/sakif/keepsake/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "keepsake",
	Short: "Milestone and anniversary service for memories",
	Long: "Keepsake turns memories into recurring milestones and tells you which " +
		"anniversaries fall today. Configuration comes from an optional YAML file " +
		"overridden by environment variables.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}
