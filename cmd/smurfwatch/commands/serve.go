package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/riftwatch/smurfwatch/config"
	"github.com/riftwatch/smurfwatch/jobs"
	"github.com/riftwatch/smurfwatch/logger"
	"github.com/riftwatch/smurfwatch/tasks"
)

// ServeCmd runs the scheduler daemon.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the smurfwatch daemon",
	Long: `Run the smurfwatch daemon in foreground mode.

The daemon will:
- Recover executions interrupted by the previous shutdown
- Dispatch enabled job configurations on their intervals
- Hot-reload detection tuning when smurfwatch.toml changes
- Run until interrupted (Ctrl+C), waiting for in-flight jobs`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	deps := tasks.Deps{
		Client:  a.client,
		Players: a.players,
		Matches: a.matches,
		Ranks:   a.ranks,
		Engine:  a.engine,
	}

	configs := jobs.NewConfigStore(a.database)
	execs := jobs.NewExecutionStore(a.database)
	runner := jobs.NewRunner(execs, tasks.Factory(deps), logger.Named("jobs"))
	scheduler := jobs.NewScheduler(configs, execs, runner,
		time.Duration(a.cfg.Scheduler.TickIntervalSeconds)*time.Second,
		logger.Named("scheduler"))

	// Hot reload: tuning changes reach the engine without a restart.
	var watcher *config.Watcher
	if path := config.ProjectConfigPath(); path != "" {
		watcher, err = config.NewWatcher(path, logger.Named("config"))
		if err != nil {
			return err
		}
		engine := a.engine
		watcher.OnReload(func(cfg *config.Config) error {
			engine.UpdateSettings(detectionSettings(cfg))
			return nil
		})
		watcher.Start()
		defer watcher.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	enabled, err := configs.Enabled(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("smurfwatch daemon started\n")
	fmt.Printf("  Database: %s\n", a.cfg.Database.Path)
	fmt.Printf("  Enabled jobs: %d\n", len(enabled))
	fmt.Printf("  Tick interval: %ds\n", a.cfg.Scheduler.TickIntervalSeconds)
	fmt.Printf("\nPress Ctrl+C to shut down\n\n")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Printf("\nShutting down, waiting for in-flight jobs...\n")
	scheduler.Stop()
	fmt.Printf("smurfwatch daemon stopped\n")
	return nil
}
