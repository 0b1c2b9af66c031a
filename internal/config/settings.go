package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings are the tool-wide knobs, read from OSBCTL_* environment variables.
type Settings struct {
	ConfigDir        string        `env:"OSBCTL_CONFIG_DIR"`
	EnvironmentsFile string        `env:"OSBCTL_ENVIRONMENTS"`
	LogLevel         string        `env:"OSBCTL_LOG_LEVEL" envDefault:"info"`
	LogFile          string        `env:"OSBCTL_LOG_FILE"`
	Journal          string        `env:"OSBCTL_JOURNAL"`
	Timeout          time.Duration `env:"OSBCTL_TIMEOUT" envDefault:"60s"`
	TaskPoll         time.Duration `env:"OSBCTL_TASK_POLL" envDefault:"1s"`
}

// JournalDisabled reports whether the audit journal was turned off.
func (s *Settings) JournalDisabled() bool {
	return strings.EqualFold(s.Journal, "off")
}

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "osbctl"), nil
}

// LoadSettings loads optional .env files (config dir first, then the working directory)
// and parses the settings. Variables already set in the process environment win.
func LoadSettings() (*Settings, error) {
	dir := os.Getenv("OSBCTL_CONFIG_DIR")
	if dir == "" {
		d, err := defaultConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolving config dir: %w", err)
		}
		dir = d
	}

	for _, f := range []string{filepath.Join(dir, ".env"), ".env"} {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	if s.ConfigDir == "" {
		s.ConfigDir = dir
	}
	applySettingsDefaults(&s)
	return &s, nil
}

func applySettingsDefaults(s *Settings) {
	if s.EnvironmentsFile == "" {
		s.EnvironmentsFile = filepath.Join(s.ConfigDir, "environments.yaml")
	}
	if s.LogFile == "" {
		s.LogFile = filepath.Join(s.ConfigDir, "osbctl.log")
	}
	if s.Journal == "" {
		s.Journal = filepath.Join(s.ConfigDir, "journal.db")
	}
	if s.Timeout <= 0 {
		s.Timeout = 60 * time.Second
	}
	if s.TaskPoll <= 0 {
		s.TaskPoll = time.Second
	}
}
