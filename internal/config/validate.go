package config

import (
	"errors"
	"fmt"

	"github.com/fentz26/prodtrack/internal/models"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateWorkflow()
}

func (c *Config) validateServer() error {
	if c.Server.ReadTimeoutSeconds <= 0 {
		return errors.New("server.read_timeout_seconds must be positive")
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		return errors.New("server.write_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return errors.New("database.path must be set")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.PollIntervalMS <= 0 {
		return errors.New("events.poll_interval_ms must be positive")
	}
	if c.Events.BatchSize <= 0 {
		return errors.New("events.batch_size must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	for status, label := range c.Workflow.Labels {
		if !models.TaskStatus(status).Valid() {
			return fmt.Errorf("workflow.labels: unknown status %q", status)
		}
		if label == "" {
			return fmt.Errorf("workflow.labels.%s must not be empty", status)
		}
	}
	return nil
}
