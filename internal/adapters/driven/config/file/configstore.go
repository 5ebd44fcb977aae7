// Package file implements configuration persistence as a TOML file.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/blackbird-labs/punchd/internal/core/domain"
	"github.com/blackbird-labs/punchd/internal/core/ports/driven"
)

const configFileName = "config.toml"

// fileConfig is the on-disk shape of the configuration.
type fileConfig struct {
	API      apiConfig      `toml:"api"`
	Schedule scheduleConfig `toml:"schedule"`
}

type apiConfig struct {
	BaseURL  string `toml:"base_url"`
	ClientID string `toml:"client_id"`
}

type scheduleConfig struct {
	AutoEnabled            bool   `toml:"auto_enabled"`
	ClockInTime            string `toml:"clock_in_time"`
	Timezone               string `toml:"timezone"`
	MinWorkDurationMinutes uint   `toml:"min_work_duration_minutes"`
}

// APISettings holds the remote service settings read from the config file.
type APISettings struct {
	BaseURL  string
	ClientID string
}

// Store reads and writes the configuration file.
type Store struct {
	mu   sync.RWMutex
	path string
}

var _ driven.ConfigStore = (*Store)(nil)

// NewStore creates a config store rooted at dataDir. The file is created
// with defaults on first save, not on construction.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".punchd")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	return &Store{path: filepath.Join(dataDir, configFileName)}, nil
}

// Path returns the config file location.
func (s *Store) Path() string {
	return s.path
}

// Schedule loads the work schedule. A missing file yields the defaults.
func (s *Store) Schedule() (domain.WorkSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, err := s.load()
	if err != nil {
		return domain.WorkSchedule{}, err
	}

	schedule := domain.WorkSchedule{
		AutoEnabled:            cfg.Schedule.AutoEnabled,
		ClockInTime:            cfg.Schedule.ClockInTime,
		Timezone:               cfg.Schedule.Timezone,
		MinWorkDurationMinutes: cfg.Schedule.MinWorkDurationMinutes,
	}
	if err := schedule.Validate(); err != nil {
		return domain.WorkSchedule{}, fmt.Errorf("config %s: %w", s.path, err)
	}
	return schedule, nil
}

// SaveSchedule persists the work schedule, preserving the other sections.
func (s *Store) SaveSchedule(schedule domain.WorkSchedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return err
	}
	cfg.Schedule = scheduleConfig{
		AutoEnabled:            schedule.AutoEnabled,
		ClockInTime:            schedule.ClockInTime,
		Timezone:               schedule.Timezone,
		MinWorkDurationMinutes: schedule.MinWorkDurationMinutes,
	}
	return s.save(cfg)
}

// API loads the remote service settings.
func (s *Store) API() (APISettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, err := s.load()
	if err != nil {
		return APISettings{}, err
	}
	return APISettings{BaseURL: cfg.API.BaseURL, ClientID: cfg.API.ClientID}, nil
}

// SaveAPI persists the remote service settings.
func (s *Store) SaveAPI(settings APISettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return err
	}
	cfg.API = apiConfig{BaseURL: settings.BaseURL, ClientID: settings.ClientID}
	return s.save(cfg)
}

// load reads the file or returns defaults when it does not exist.
func (s *Store) load() (fileConfig, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parse config %s: %w", s.path, err)
	}
	return cfg, nil
}

// save writes the file atomically via a temp file and rename.
func (s *Store) save(cfg fileConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

func defaultConfig() fileConfig {
	schedule := domain.DefaultWorkSchedule()
	return fileConfig{
		Schedule: scheduleConfig{
			AutoEnabled:            schedule.AutoEnabled,
			ClockInTime:            schedule.ClockInTime,
			Timezone:               schedule.Timezone,
			MinWorkDurationMinutes: schedule.MinWorkDurationMinutes,
		},
	}
}
