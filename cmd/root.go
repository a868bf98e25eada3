// Package cmd holds the clover command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
)

// settings is populated by the root command before any subcommand runs.
type settings struct {
	cfg *config.Config
}

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	s := &settings{}

	rootCmd := &cobra.Command{
		Use:           "clover",
		Short:         "Duplicate detection and merging for person and organization records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configFile string
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML, JSON or TOML file of settings keyed by variable name")

	rootCmd.AddCommand(
		serveCommand(s),
		migrateCommand(s),
		scanCommand(s),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		s.cfg = cfg
		return nil
	}

	return rootCmd
}
