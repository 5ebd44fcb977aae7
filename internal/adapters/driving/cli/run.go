package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/blackbird-labs/punchd/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler in the foreground",
	Long: `Starts the clock scheduler and keeps it running until interrupted.

On startup the daemon reconciles local state with the remote attendance
record, then arms timers according to the configured schedule. The
configuration file is watched, so schedule edits take effect without a
restart. A wake monitor detects suspend/resume gaps and re-runs
reconciliation after them.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	if clockScheduler == nil || configStore == nil || wakeMonitor == nil {
		return errors.New("scheduler not configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schedule, err := configStore.Schedule()
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}

	if err := clockScheduler.Start(ctx, schedule); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer clockScheduler.Stop()

	cmd.Println("punchd scheduler started")
	if schedule.AutoEnabled {
		cmd.Printf("Automatic clock-in at %s (%s)\n", schedule.ClockInTime, schedule.Timezone)
	} else {
		cmd.Println("Automatic scheduling is disabled; running in manual mode")
	}

	acted, err := clockScheduler.RunStartupCheck(ctx)
	if err != nil {
		logger.Warn("Startup check failed: %v", err)
	} else if acted {
		cmd.Println("Startup check reconciled today's attendance")
	}

	go func() {
		if err := wakeMonitor.Start(ctx); err != nil {
			logger.Warn("Wake monitor stopped: %v", err)
		}
	}()
	defer wakeMonitor.Stop()

	watcher, err := watchConfig(ctx, cmd)
	if err != nil {
		logger.Warn("Config watch disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	cmd.Printf("Received %s, shutting down\n", sig)
	return nil
}

// watchConfig reloads the schedule when the config file changes. Editors
// often replace the file, so the parent directory is watched and events
// are debounced.
func watchConfig(ctx context.Context, cmd *cobra.Command) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	configPath := configStore.Path()
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != configPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					reloadSchedule(ctx, cmd)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Config watch error: %v", err)
			}
		}
	}()

	return watcher, nil
}

func reloadSchedule(ctx context.Context, cmd *cobra.Command) {
	schedule, err := configStore.Schedule()
	if err != nil {
		logger.Warn("Ignoring config change: %v", err)
		return
	}
	if err := clockScheduler.Start(ctx, schedule); err != nil {
		logger.Warn("Failed to apply new schedule: %v", err)
		return
	}
	cmd.Printf("Configuration reloaded: clock-in %s, auto=%t\n",
		schedule.ClockInTime, schedule.AutoEnabled)
}
