// ABOUTME: Configuration management for canvas-export.
// ABOUTME: Reads Canvas credentials from the environment and optional tuning from a YAML settings file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envAccessToken = "CANVAS_ACCESS_TOKEN"
	envAPIBase     = "CANVAS_API_BASE"
	envConfigPath  = "CANVAS_EXPORT_CONFIG"
)

type Config struct {
	BaseURL     string `yaml:"-"`
	AccessToken string `yaml:"-"`

	PollInterval  time.Duration `yaml:"poll_interval"`
	ExportTimeout time.Duration `yaml:"export_timeout"`
	OutputDir     string        `yaml:"output_dir"`
	ChunkSize     int           `yaml:"chunk_size"`
	LogLevel      string        `yaml:"log_level"`
}

type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %s", e.Key, e.Reason)
}

func defaultConfig() *Config {
	return &Config{
		PollInterval: defaultPollInterval,
		OutputDir:    ".",
		ChunkSize:    defaultChunkSize,
		LogLevel:     "info",
	}
}

func configPath() (string, error) {
	if p := os.Getenv(envConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "canvas-export", "config.yaml"), nil
}

// loadConfig checks the required environment variables before anything else,
// then layers the settings file, if there is one, over the defaults.
func loadConfig() (*Config, error) {
	token, err := requireEnv(envAccessToken)
	if err != nil {
		return nil, err
	}
	base, err := requireEnv(envAPIBase)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()

	path, err := configPath()
	if err != nil {
		return nil, err
	}
	if err := cfg.loadSettings(path); err != nil {
		return nil, err
	}

	cfg.AccessToken = token
	cfg.BaseURL = base
	return cfg, nil
}

func requireEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", &ConfigError{Key: key, Reason: "environmental variable not set"}
	}
	return v, nil
}

func (cfg *Config) loadSettings(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &ConfigError{Key: path, Reason: fmt.Sprintf("is not valid settings: %v", err)}
	}

	if cfg.PollInterval < 0 {
		return &ConfigError{Key: "poll_interval", Reason: "must not be negative"}
	}
	if cfg.ExportTimeout < 0 {
		return &ConfigError{Key: "export_timeout", Reason: "must not be negative"}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	return nil
}
