package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riftwatch/smurfwatch/cmd/smurfwatch/commands"
	"github.com/riftwatch/smurfwatch/logger"
)

var rootCmd = &cobra.Command{
	Use:   "smurfwatch",
	Short: "smurfwatch - smurf account detection over game-statistics data",
	Long: `smurfwatch - background data collection and smurf detection.

smurfwatch tracks players through a rate-limited game-statistics API,
accumulates their match and rank history in SQLite, and scores accounts
with a multi-factor detection pipeline.

Available commands:
  serve    - Run the scheduler daemon (jobs + config hot reload)
  track    - Start tracking a player
  analyze  - Score one player on stored history
  jobs     - Manage job configurations and inspect runs
  db       - Manage the database (migrate, stats)
  version  - Show version information

Examples:
  smurfwatch serve                     # Run the daemon in foreground
  smurfwatch analyze Faker#KR1         # One-shot analysis
  smurfwatch jobs ls                   # List job configurations
  smurfwatch db stats                  # Show database statistics`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs instead of console output")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.TrackCmd)
	rootCmd.AddCommand(commands.UntrackCmd)
	rootCmd.AddCommand(commands.AnalyzeCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
