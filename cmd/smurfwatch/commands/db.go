package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DbCmd manages the smurfwatch database.
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the smurfwatch database",
	Long: `Manage database operations.

Examples:
  smurfwatch db migrate   # Apply pending migrations
  smurfwatch db stats     # Show table counts and flag totals`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	// openApp migrates as part of wiring
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Database %s is up to date\n", a.cfg.Database.Path)
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	counts := []struct {
		label string
		query string
	}{
		{"Players", `SELECT COUNT(*) FROM players`},
		{"  tracked", `SELECT COUNT(*) FROM players WHERE tracked = 1`},
		{"  banned", `SELECT COUNT(*) FROM players WHERE banned = 1`},
		{"Match records", `SELECT COUNT(*) FROM match_records`},
		{"Rank snapshots", `SELECT COUNT(*) FROM rank_snapshots`},
		{"Analyses", `SELECT COUNT(*) FROM player_analyses`},
		{"  flagged", `SELECT COUNT(*) FROM player_analyses WHERE is_smurf = 1`},
		{"Job configurations", `SELECT COUNT(*) FROM job_configurations`},
		{"Job executions", `SELECT COUNT(*) FROM job_executions`},
	}

	fmt.Printf("Database Statistics\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("Database Path: %s\n\n", a.cfg.Database.Path)

	for _, c := range counts {
		var n int
		if err := a.database.QueryRow(c.query).Scan(&n); err != nil {
			return fmt.Errorf("failed to query %s: %w", c.label, err)
		}
		fmt.Printf("%-20s %d\n", c.label+":", n)
	}
	return nil
}
