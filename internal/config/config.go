package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/model"
)

// Config holds user preferences and the identity the CLI acts as
type Config struct {
	User model.User `yaml:"user" json:"user"` // Supplied by the identity provider, not managed here

	StorePath    string        `yaml:"store_path" json:"store_path"`       // Local SQLite document store
	ServerURL    string        `yaml:"server_url" json:"server_url"`       // Use the remote store when set
	AwaitTimeout time.Duration `yaml:"await_timeout" json:"await_timeout"` // Wait for a created task to show up

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging

	dir string
}

// Dir returns the ironboard home directory: $IRONBOARD_HOME or ~/.ironboard
func Dir() (string, error) {
	if dir := os.Getenv("IRONBOARD_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ironboard"), nil
}

// DefaultConfig returns default settings rooted at dir
func DefaultConfig(dir string) *Config {
	logPath := ""
	storePath := ""
	if dir != "" {
		logPath = filepath.Join(dir, "logs", "ironboard.log")
		storePath = filepath.Join(dir, "ironboard.db")
	}

	return &Config{
		StorePath:    storePath,
		ServerURL:    getEnv("IRONBOARD_SERVER_URL", ""),
		AwaitTimeout: 5 * time.Second,
		LogLevel:     getEnv("IRONBOARD_LOG_LEVEL", "INFO"),
		LogFile:      getEnv("IRONBOARD_LOG_FILE", logPath),
		LogConsole:   getEnv("IRONBOARD_LOG_CONSOLE", "false") == "true",
		dir:          dir,
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Load loads config from the ironboard home directory
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom loads dir/config.yaml, returning defaults when it doesn't exist
func LoadFrom(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "config.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(dir), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig(dir)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment wins over the file
	cfg.ServerURL = getEnv("IRONBOARD_SERVER_URL", cfg.ServerURL)
	cfg.LogLevel = getEnv("IRONBOARD_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("IRONBOARD_LOG_FILE", cfg.LogFile)
	if v := os.Getenv("IRONBOARD_LOG_CONSOLE"); v != "" {
		cfg.LogConsole = v == "true"
	}

	return cfg, nil
}

// Dir returns the directory the config was loaded from
func (c *Config) Dir() string {
	return c.dir
}

// Save writes the config to dir/config.yaml
func (c *Config) Save() error {
	if c.dir == "" {
		return fmt.Errorf("config has no home directory")
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(c.dir, "config.yaml")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Logger builds the logger configuration from these settings
func (c *Config) Logger() logger.Config {
	lc := logger.DefaultConfig(c.dir)
	lc.Level = logger.ParseLevel(c.LogLevel)
	lc.FilePath = c.LogFile
	lc.Console = c.LogConsole
	return lc
}
