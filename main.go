// punchd is an attendance clock-in/clock-out daemon and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/blackbird-labs/punchd/internal/adapters/driven/attendance"
	"github.com/blackbird-labs/punchd/internal/adapters/driven/config/file"
	"github.com/blackbird-labs/punchd/internal/adapters/driven/storage/sqlite"
	"github.com/blackbird-labs/punchd/internal/adapters/driving/cli"
	"github.com/blackbird-labs/punchd/internal/core/ports/driven"
	"github.com/blackbird-labs/punchd/internal/core/services"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dataDir := os.Getenv("PUNCHD_DATA_DIR")

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("open data store: %w", err)
	}
	defer store.Close()

	configStore, err := file.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}

	client, err := buildClient(configStore)
	if err != nil {
		return err
	}

	activityLog := store.ActivityLog()
	operationStore := store.OperationStore()

	tokens := services.NewTokenCoordinator(store.CredentialStore(), client, activityLog)
	scheduler := services.NewScheduler(tokens, operationStore, activityLog)
	monitor := services.NewMonitor(scheduler,
		services.DefaultProbeInterval, services.DefaultGapThreshold)

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Scheduler:  scheduler,
		Tokens:     tokens,
		Monitor:    monitor,
		Config:     configStore,
		Activity:   activityLog,
		Operations: operationStore,
	})

	return cli.Execute()
}

// buildClient creates the attendance client from the stored API settings.
// Before setup has run there is no base URL and a placeholder client is
// used so commands like setup and schedule still work.
func buildClient(configStore *file.Store) (driven.AttendanceClient, error) {
	settings, err := configStore.API()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if settings.BaseURL == "" {
		return attendance.Unconfigured(), nil
	}
	client, err := attendance.NewClient(attendance.Config{
		BaseURL:  settings.BaseURL,
		ClientID: settings.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("build attendance client: %w", err)
	}
	return client, nil
}
