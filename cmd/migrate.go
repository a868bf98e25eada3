package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/internal/app"
)

func migrateCommand(s *settings) *cobra.Command {
	var version int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("version") {
				s.cfg.DatabaseMigrationVersion = version
			}

			a, err := app.New(s.cfg)
			if err != nil {
				return err
			}

			db, err := a.ConnectDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := a.Migrate(db); err != nil {
				return err
			}
			a.Logger.Info("Migrations applied")
			return nil
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "target migration version (0 migrates to the latest)")
	return cmd
}
