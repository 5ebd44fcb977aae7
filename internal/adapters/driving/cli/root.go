// Package cli implements the command-line interface. Commands are
// package-level cobra variables registered against rootCmd in init, and
// the services they drive are injected by the composition root before
// Execute runs.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/blackbird-labs/punchd/internal/adapters/driven/config/file"
	"github.com/blackbird-labs/punchd/internal/core/ports/driven"
	"github.com/blackbird-labs/punchd/internal/core/ports/driving"
	"github.com/blackbird-labs/punchd/internal/core/services"
	"github.com/blackbird-labs/punchd/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services injected by the composition root.
var (
	clockScheduler driving.ClockScheduler
	tokenService   *services.TokenCoordinator
	wakeMonitor    *services.Monitor
	configStore    *file.Store
	activityLog    driven.ActivityLog
	operationStore driven.OperationStore
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "punchd",
	Short: "Automated attendance clock-in and clock-out",
	Long: `punchd schedules attendance clock-in and clock-out operations
against a remote attendance service, reconciles local state with the
remote record on startup and after system wake, and keeps an activity
log of everything it does.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

// Services bundles everything the commands need.
type Services struct {
	Scheduler  driving.ClockScheduler
	Tokens     *services.TokenCoordinator
	Monitor    *services.Monitor
	Config     *file.Store
	Activity   driven.ActivityLog
	Operations driven.OperationStore
}

// SetServices injects the service layer. Call before Execute.
func SetServices(s Services) {
	clockScheduler = s.Scheduler
	tokenService = s.Tokens
	wakeMonitor = s.Monitor
	configStore = s.Config
	activityLog = s.Activity
	operationStore = s.Operations
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}
