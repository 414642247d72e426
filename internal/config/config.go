package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	DatabaseURL         string `yaml:"databaseURL,omitempty"`
	Timezone            string `yaml:"timezone" validate:"required"`
	MinOnDuty           int    `yaml:"minOnDuty" validate:"min=0"`
	CooldownEditSec     int    `yaml:"cooldownEditSec" validate:"min=0"`
	CooldownEndEarlySec int    `yaml:"cooldownEndEarlySec" validate:"min=0"`
	ShiftStartHours     []int  `yaml:"shiftStartHours,omitempty" validate:"dive,min=0,max=23"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Timezone:            "America/Los_Angeles",
		MinOnDuty:           3,
		CooldownEditSec:     300,
		CooldownEndEarlySec: 300,
		ShiftStartHours:     []int{6, 14, 22},
	}
}

// Load loads and validates the configuration from opsdesk_config.yaml
// It looks for the config file in the current directory first, then in the
// user's home directory. A missing file falls back to defaults.
func Load() (*Config, error) {
	configPath, err := findConfigFile()
	if err != nil {
		return Default(), nil
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration struct and checks the timezone is
// resolvable.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	return nil
}

// findConfigFile searches for opsdesk_config.yaml in current directory and home directory
func findConfigFile() (string, error) {
	configFileName := "opsdesk_config.yaml"

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
