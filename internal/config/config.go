package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains HTTP listener configuration.
type Server struct {
	Listen              string `toml:"listen"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

// Database contains SQLite store configuration.
type Database struct {
	Path string `toml:"path"`
}

// FileTree selects where template sets come from.
type FileTree struct {
	Dir     string `toml:"dir"`
	Default string `toml:"default"`
}

// Events configures the event dispatcher.
type Events struct {
	LogPath        string `toml:"log_path"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
	BatchSize      int    `toml:"batch_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Workflow holds studio-wide status display labels. Projects may override them.
type Workflow struct {
	Labels map[string]string `toml:"labels"`
}

// Config encapsulates all configuration values for prodtrack.
type Config struct {
	Server   Server   `toml:"server"`
	Database Database `toml:"database"`
	FileTree FileTree `toml:"file_tree"`
	Events   Events   `toml:"events"`
	Logging  Logging  `toml:"logging"`
	Workflow Workflow `toml:"workflow"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/prodtrack/config.toml")
}

// SampleConfig returns the commented sample configuration written by `config init`.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// ReadTimeout returns the server read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the server write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

// PollInterval returns how often the event dispatcher drains the outbox.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Events.PollIntervalMS) * time.Millisecond
}

// LockPath is the daemon instance lock that sits beside the database.
func (c *Config) LockPath() string {
	return c.Database.Path + ".lock"
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("prodtrack.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	if v, ok := os.LookupEnv("PRODTRACK_LISTEN"); ok && strings.TrimSpace(v) != "" {
		c.Server.Listen = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("PRODTRACK_DB"); ok && strings.TrimSpace(v) != "" {
		c.Database.Path = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("PRODTRACK_FILE_TREE_DIR"); ok {
		c.FileTree.Dir = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("PRODTRACK_LOG_LEVEL"); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = strings.TrimSpace(v)
	}

	var err error
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	if c.FileTree.Dir, err = expandPath(c.FileTree.Dir); err != nil {
		return fmt.Errorf("file_tree.dir: %w", err)
	}
	if c.Events.LogPath, err = expandPath(c.Events.LogPath); err != nil {
		return fmt.Errorf("events.log_path: %w", err)
	}

	c.Server.Listen = strings.TrimSpace(c.Server.Listen)
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	c.FileTree.Default = strings.TrimSpace(c.FileTree.Default)
	if c.FileTree.Default == "" {
		c.FileTree.Default = defaultFileTree
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}

	labels := defaultLabels()
	for status, label := range c.Workflow.Labels {
		labels[strings.TrimSpace(status)] = strings.TrimSpace(label)
	}
	c.Workflow.Labels = labels
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
