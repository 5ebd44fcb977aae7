package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackbird-labs/punchd/internal/core/domain"
)

var clockOutForce bool

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Manually clock in or out",
}

var clockInCmd = &cobra.Command{
	Use:   "in",
	Short: "Clock in now",
	RunE:  runClockIn,
}

var clockOutCmd = &cobra.Command{
	Use:   "out",
	Short: "Clock out now",
	Long: `Clocks out of the current session.

By default the minimum work duration is enforced. Use --force to clock
out early.`,
	RunE: runClockOut,
}

func init() {
	clockOutCmd.Flags().BoolVar(&clockOutForce, "force", false, "Clock out even before the minimum work duration")
	clockCmd.AddCommand(clockInCmd)
	clockCmd.AddCommand(clockOutCmd)
	rootCmd.AddCommand(clockCmd)
}

func runClockIn(cmd *cobra.Command, _ []string) error {
	if clockScheduler == nil {
		return errors.New("scheduler not configured")
	}

	acted, err := clockScheduler.ManualClockIn(context.Background())
	if err != nil {
		if errors.Is(err, domain.ErrAuthRequired) {
			return errors.New("no credentials stored; run 'punchd setup' first")
		}
		return fmt.Errorf("clock in: %w", err)
	}
	if !acted {
		cmd.Println("Already clocked in")
		return nil
	}
	cmd.Println("Clocked in")
	return nil
}

func runClockOut(cmd *cobra.Command, _ []string) error {
	if clockScheduler == nil {
		return errors.New("scheduler not configured")
	}

	acted, err := clockScheduler.ManualClockOut(context.Background(), clockOutForce)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotClockedIn):
			return errors.New("not clocked in")
		case errors.Is(err, domain.ErrMinimumDuration):
			return errors.New("minimum work duration not yet met; use --force to clock out anyway")
		case errors.Is(err, domain.ErrAuthRequired):
			return errors.New("no credentials stored; run 'punchd setup' first")
		}
		return fmt.Errorf("clock out: %w", err)
	}
	if !acted {
		cmd.Println("Nothing to do")
		return nil
	}
	cmd.Println("Clocked out")
	return nil
}
