package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const configFileName = "rosterd.yaml"

// ExclusionPair names two shift families an employee must not hold on the
// same calendar day.
type ExclusionPair struct {
	A string `yaml:"a" validate:"required,oneof=incidents incidents_standby oncall"`
	B string `yaml:"b" validate:"required,oneof=incidents incidents_standby oncall"`
}

// Config represents the application configuration
type Config struct {
	// Timezone is the single IANA deployment zone all window arithmetic
	// happens in.
	Timezone string `yaml:"timezone" validate:"required"`

	DatabaseURL string `yaml:"databaseURL" validate:"required"`

	// FairnessLookbackDays bounds the historical fairness window ending at
	// generation start. Defaults to 180.
	FairnessLookbackDays int `yaml:"fairnessLookbackDays,omitempty" validate:"omitempty,min=1"`

	// RoundRobinScope controls the fairness tie-break counter: "run" resets
	// it per generation run, "persistent" seeds it from the committed
	// assignment count so rolling weekly runs keep rotating.
	RoundRobinScope string `yaml:"roundRobinScope,omitempty" validate:"omitempty,oneof=run persistent"`

	// Families enables a subset of shift families. Empty means all.
	Families []string `yaml:"families,omitempty" validate:"omitempty,dive,oneof=incidents incidents_standby oncall"`

	// MutualExclusions overrides the default exclusivity pairs (each
	// incidents family excludes on-call, and the two incidents families
	// exclude each other).
	MutualExclusions []ExclusionPair `yaml:"mutualExclusions,omitempty" validate:"dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from rosterd.yaml, looking in
// the current directory first and then the user's home directory.
func Load() (*Config, error) {
	configPath, err := findConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}
	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks the timezone is a
// loadable IANA zone.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	for i, pair := range cfg.MutualExclusions {
		if pair.A == pair.B {
			return fmt.Errorf("mutualExclusions[%d]: a family cannot exclude itself", i)
		}
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/Amsterdam"
	}
	if cfg.FairnessLookbackDays == 0 {
		cfg.FairnessLookbackDays = 180
	}
	if cfg.RoundRobinScope == "" {
		cfg.RoundRobinScope = "run"
	}
	if len(cfg.Families) == 0 {
		cfg.Families = []string{"incidents", "incidents_standby", "oncall"}
	}
}

// findConfigFile searches for rosterd.yaml in current directory and home directory
func findConfigFile() (string, error) {
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

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
