package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"timemate/internal/config"
	"timemate/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tables used by the sql store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.StoreBackend != config.BackendSQL {
			return fmt.Errorf("migrate only applies to the %s backend, STORE_BACKEND is %q", config.BackendSQL, cfg.StoreBackend)
		}

		ctx := cmd.Context()
		database, err := db.Connect(ctx, cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.Migrate(ctx, database); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
