package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		DatabaseURL:         "postgres://localhost/opsdesk",
		Timezone:            "America/Los_Angeles",
		MinOnDuty:           3,
		CooldownEditSec:     300,
		CooldownEndEarlySec: 300,
		ShiftStartHours:     []int{6, 14, 22},
	}

	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_MinimalConfig(t *testing.T) {
	cfg := &Config{
		Timezone: "UTC",
	}

	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_MissingTimezone(t *testing.T) {
	cfg := &Config{
		MinOnDuty: 3,
	}

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_UnresolvableTimezone(t *testing.T) {
	cfg := &Config{
		Timezone: "Mars/Olympus_Mons",
	}

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timezone")
}

func TestValidate_StartHourOutOfRange(t *testing.T) {
	cfg := &Config{
		Timezone:        "UTC",
		ShiftStartHours: []int{6, 14, 24},
	}

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_NegativeCooldown(t *testing.T) {
	cfg := &Config{
		Timezone:        "UTC",
		CooldownEditSec: -1,
	}

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "America/Los_Angeles", cfg.Timezone)
	assert.Equal(t, 3, cfg.MinOnDuty)
	assert.Equal(t, 300, cfg.CooldownEditSec)
	assert.Equal(t, 300, cfg.CooldownEndEarlySec)
	assert.Equal(t, []int{6, 14, 22}, cfg.ShiftStartHours)
	assert.NoError(t, Validate(cfg))
}

func TestLoadFromPath_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	validConfig := `
databaseURL: "postgres://localhost/opsdesk"
timezone: "Europe/London"
minOnDuty: 4
cooldownEditSec: 120
cooldownEndEarlySec: 600
shiftStartHours:
  - 7
  - 15
  - 23
`

	err := os.WriteFile(configPath, []byte(validConfig), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/opsdesk", cfg.DatabaseURL)
	assert.Equal(t, "Europe/London", cfg.Timezone)
	assert.Equal(t, 4, cfg.MinOnDuty)
	assert.Equal(t, 120, cfg.CooldownEditSec)
	assert.Equal(t, 600, cfg.CooldownEndEarlySec)
	assert.Equal(t, []int{7, 15, 23}, cfg.ShiftStartHours)
}

func TestLoadFromPath_PartialConfigKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial_config.yaml")

	partialConfig := `
minOnDuty: 5
`

	err := os.WriteFile(configPath, []byte(partialConfig), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MinOnDuty)
	assert.Equal(t, "America/Los_Angeles", cfg.Timezone)
	assert.Equal(t, 300, cfg.CooldownEditSec)
	assert.Equal(t, []int{6, 14, 22}, cfg.ShiftStartHours)
}

func TestLoadFromPath_UnresolvableTimezone(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad_timezone.yaml")

	badConfig := `
timezone: "Not/A_Zone"
`

	err := os.WriteFile(configPath, []byte(badConfig), 0644)
	require.NoError(t, err)

	_, err = LoadFromPath(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timezone")
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_yaml.yaml")

	invalidYAML := `
timezone: "UTC"
  invalid indentation
minOnDuty: 3
`

	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	_, err = LoadFromPath(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadFromPath_FileNotFound(t *testing.T) {
	_, err := LoadFromPath("/nonexistent/path/config.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
