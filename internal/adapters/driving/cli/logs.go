package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent activity",
	Long: `Shows the activity log: clock operations, attendance checks, token
refreshes, and wake events, most recent first.`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntVar(&logsLimit, "limit", 20, "Maximum number of entries to show")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, _ []string) error {
	if activityLog == nil {
		return errors.New("activity log not configured")
	}

	events, err := activityLog.Recent(context.Background(), logsLimit)
	if err != nil {
		return fmt.Errorf("load activity log: %w", err)
	}

	if len(events) == 0 {
		cmd.Println("No activity recorded yet.")
		return nil
	}

	for _, event := range events {
		outcome := "ok"
		if !event.Success {
			outcome = "FAILED"
		}
		line := fmt.Sprintf("%s  %-16s %-6s", event.Timestamp.Local().Format("2006-01-02 15:04:05"), event.Action, outcome)
		if event.Trigger != "" {
			line += fmt.Sprintf("  trigger=%s", event.Trigger)
		}
		if event.Details != "" {
			line += "  " + event.Details
		}
		if event.Error != "" {
			line += "  error=" + event.Error
		}
		cmd.Println(line)
	}
	return nil
}
