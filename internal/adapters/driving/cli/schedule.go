package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackbird-labs/punchd/internal/core/domain"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the work schedule",
	RunE:  runScheduleShow,
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current schedule",
	RunE:  runScheduleShow,
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Edit the schedule interactively",
	RunE:  runScheduleSet,
}

func init() {
	scheduleCmd.AddCommand(scheduleShowCmd)
	scheduleCmd.AddCommand(scheduleSetCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduleShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	schedule, err := configStore.Schedule()
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}

	cmd.Println("Work schedule")
	cmd.Println("=============")
	if schedule.AutoEnabled {
		cmd.Println("  Automatic: enabled")
	} else {
		cmd.Println("  Automatic: disabled")
	}
	cmd.Printf("  Clock-in time: %s\n", schedule.ClockInTime)
	tz := schedule.Timezone
	if tz == "" {
		tz = "(system local)"
	}
	cmd.Printf("  Timezone: %s\n", tz)
	cmd.Printf("  Minimum work duration: %s\n", schedule.MinWorkDuration())
	return nil
}

func runScheduleSet(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	current, err := configStore.Schedule()
	if err != nil {
		// Unreadable config still gets sane defaults to edit from.
		current = domain.DefaultWorkSchedule()
	}

	reader := bufio.NewReader(os.Stdin)

	next := current
	next.ClockInTime = promptDefault(cmd, reader, "Clock-in time (HH:MM)", current.ClockInTime)
	next.Timezone = promptDefault(cmd, reader, "Timezone (IANA name, empty for system local)", current.Timezone)

	minutes := promptDefault(cmd, reader, "Minimum work duration in minutes",
		strconv.FormatUint(uint64(current.MinWorkDurationMinutes), 10))
	parsed, err := strconv.ParseUint(minutes, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: minimum work duration must be a number", domain.ErrInvalidInput)
	}
	next.MinWorkDurationMinutes = uint(parsed)

	auto := promptDefault(cmd, reader, "Enable automatic clock-in (yes/no)", boolWord(current.AutoEnabled))
	switch auto {
	case "yes", "y", "true":
		next.AutoEnabled = true
	case "no", "n", "false":
		next.AutoEnabled = false
	default:
		return fmt.Errorf("%w: answer yes or no", domain.ErrInvalidInput)
	}

	if err := next.Validate(); err != nil {
		return err
	}
	if err := configStore.SaveSchedule(next); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}

	cmd.Println("Schedule saved.")
	if next.AutoEnabled {
		cmd.Printf("Automatic clock-in at %s.\n", next.ClockInTime)
	}
	return nil
}

func boolWord(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
