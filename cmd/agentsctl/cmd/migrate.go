package cmd

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/xela07ax/spaceai-agent-portal/internal/repository/postgres"
)

var (
	migrateDSN    string
	migrateAction string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply audit journal migrations",
	Long:  "migrate runs the embedded goose migrations. Actions: up, down, status, version, redo.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateDSN == "" {
			migrateDSN = os.Getenv("DATABASE_URL")
		}
		if migrateDSN == "" {
			return fmt.Errorf("--dsn or DATABASE_URL is required")
		}

		db, err := postgres.Open(migrateDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.Ping(cmd.Context(), db); err != nil {
			return err
		}
		if err := postgres.Migrate(cmd.Context(), db, migrateAction); err != nil {
			return err
		}
		pterm.Success.Printf("migrate %s: done\n", migrateAction)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDSN, "dsn", "", "PostgreSQL DSN (default DATABASE_URL)")
	migrateCmd.Flags().StringVar(&migrateAction, "action", "up", "Migration action")
}
