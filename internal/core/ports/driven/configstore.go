package driven

import "github.com/blackbird-labs/punchd/internal/core/domain"

// ConfigStore persists the user's work schedule configuration.
type ConfigStore interface {
	// Schedule returns the configured work schedule. A missing
	// configuration returns the domain default, not an error.
	Schedule() (domain.WorkSchedule, error)

	// SaveSchedule validates and persists a schedule.
	SaveSchedule(schedule domain.WorkSchedule) error
}
