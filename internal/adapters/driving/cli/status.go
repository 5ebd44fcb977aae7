package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackbird-labs/punchd/internal/core/domain"
)

var statusHistory int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scheduler and session state",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusHistory, "history", 0, "Include the last n resolved operations")
	// Bare --history shows a default-sized history.
	statusCmd.Flags().Lookup("history").NoOptDefVal = "10"
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if clockScheduler == nil {
		return errors.New("scheduler not configured")
	}

	state := clockScheduler.State()

	cmd.Println("Scheduler")
	cmd.Println("=========")
	if state.IsRunning {
		cmd.Println("  Running: yes")
	} else {
		cmd.Println("  Running: no")
	}
	if state.LastError != "" {
		cmd.Printf("  Last error: %s\n", state.LastError)
	}
	cmd.Println()

	cmd.Println("Session")
	cmd.Println("=======")
	session := state.CurrentSession
	if session.ClockedIn {
		cmd.Println("  Clocked in: yes")
		cmd.Printf("  Since: %s\n", formatLocal(session.ClockInTime))
		if !session.ExpectedClockOutTime.IsZero() {
			cmd.Printf("  Expected clock-out: %s\n", formatLocal(session.ExpectedClockOutTime))
		}
		if clockScheduler.CanClockOut() {
			cmd.Println("  Minimum work duration: met")
		} else {
			cmd.Println("  Minimum work duration: not yet met")
		}
	} else {
		cmd.Println("  Clocked in: no")
	}
	cmd.Println()

	if len(state.PendingOperations) > 0 {
		cmd.Println("Pending operations")
		cmd.Println("==================")
		for _, op := range state.PendingOperations {
			if op.Status != domain.OperationPending {
				continue
			}
			cmd.Printf("  %s at %s\n", op.Kind, formatLocal(op.ScheduledTime))
		}
		cmd.Println()
	}

	if statusHistory > 0 {
		if err := printHistory(cmd, statusHistory); err != nil {
			return err
		}
	}

	return nil
}

func printHistory(cmd *cobra.Command, limit int) error {
	if operationStore == nil {
		return errors.New("operation store not configured")
	}

	ops, err := operationStore.RecentOperations(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("load operation history: %w", err)
	}

	cmd.Println("Recent operations")
	cmd.Println("=================")
	if len(ops) == 0 {
		cmd.Println("  (none)")
		return nil
	}
	for _, op := range ops {
		line := fmt.Sprintf("  %s %s scheduled %s", op.Status, op.Kind, formatLocal(op.ScheduledTime))
		if !op.ActualTime.IsZero() {
			line += fmt.Sprintf(", ran %s", formatLocal(op.ActualTime))
		}
		if op.ErrorMessage != "" {
			line += fmt.Sprintf(" (%s)", op.ErrorMessage)
		}
		cmd.Println(line)
	}
	return nil
}

func formatLocal(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
