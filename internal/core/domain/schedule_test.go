package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkSchedule_Validate(t *testing.T) {
	tests := []struct {
		name     string
		schedule WorkSchedule
		wantErr  bool
	}{
		{
			name:     "valid defaults",
			schedule: DefaultWorkSchedule(),
		},
		{
			name: "valid explicit timezone",
			schedule: WorkSchedule{
				ClockInTime:            "08:30",
				Timezone:               "Asia/Manila",
				MinWorkDurationMinutes: 480,
			},
		},
		{
			name: "missing colon",
			schedule: WorkSchedule{
				ClockInTime:            "0900",
				MinWorkDurationMinutes: 540,
			},
			wantErr: true,
		},
		{
			name: "hour out of range",
			schedule: WorkSchedule{
				ClockInTime:            "25:00",
				MinWorkDurationMinutes: 540,
			},
			wantErr: true,
		},
		{
			name: "minute out of range",
			schedule: WorkSchedule{
				ClockInTime:            "09:75",
				MinWorkDurationMinutes: 540,
			},
			wantErr: true,
		},
		{
			name: "unknown timezone",
			schedule: WorkSchedule{
				ClockInTime:            "09:00",
				Timezone:               "Not/AZone",
				MinWorkDurationMinutes: 540,
			},
			wantErr: true,
		},
		{
			name: "zero duration",
			schedule: WorkSchedule{
				ClockInTime: "09:00",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schedule.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSchedule)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWorkSchedule_NextClockIn_BeforeTime(t *testing.T) {
	schedule := WorkSchedule{ClockInTime: "09:00", Timezone: "UTC", MinWorkDurationMinutes: 540}
	now := time.Date(2026, 3, 2, 8, 59, 0, 0, time.UTC)

	next, err := schedule.NextClockIn(now)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), next)
}

func TestWorkSchedule_NextClockIn_AfterTimeRollsToTomorrow(t *testing.T) {
	schedule := WorkSchedule{ClockInTime: "09:00", Timezone: "UTC", MinWorkDurationMinutes: 540}
	now := time.Date(2026, 3, 2, 9, 0, 1, 0, time.UTC)

	next, err := schedule.NextClockIn(now)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), next)
}

func TestWorkSchedule_NextClockIn_ExactlyAtTimeRollsForward(t *testing.T) {
	schedule := WorkSchedule{ClockInTime: "09:00", Timezone: "UTC", MinWorkDurationMinutes: 540}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	next, err := schedule.NextClockIn(now)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), next)
}

func TestWorkSchedule_NextClockIn_HonoursTimezone(t *testing.T) {
	schedule := WorkSchedule{ClockInTime: "09:00", Timezone: "Asia/Manila", MinWorkDurationMinutes: 540}
	// 00:30 UTC is 08:30 in Manila, before the clock-in time.
	now := time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC)

	next, err := schedule.NextClockIn(now)

	require.NoError(t, err)
	manila, _ := time.LoadLocation("Asia/Manila")
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, manila), next)
}

func TestWorkSchedule_MinWorkDuration(t *testing.T) {
	schedule := WorkSchedule{MinWorkDurationMinutes: 540}
	assert.Equal(t, 9*time.Hour, schedule.MinWorkDuration())
}

func TestWorkSchedule_Location_EmptyMeansLocal(t *testing.T) {
	loc, err := WorkSchedule{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
