// Package config holds the CLI configuration and the job file schema.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sagerun/sagerun/pkg/check"
)

// DefaultConfig returns the default CLI configuration.
func DefaultConfig() *Config {
	return &Config{
		Region:      "us-west-2",
		HistoryPath: "~/.sagerun/history.db",
		Log: Log{
			Level: "info",
			Color: true,
		},
	}
}

// Config is the resolved CLI configuration, populated from the config file,
// environment variables, and command line flags.
type Config struct {
	ConfigFile string `json:"config_file"`

	Region string `json:"region"`
	Role   string `json:"role"`
	Bucket string `json:"bucket"`

	HistoryPath string `json:"history_path"`

	Log Log `json:"log"`
}

// Log is the logging configuration.
type Log struct {
	Level string `json:"level"`
	Color bool   `json:"color"`
}

// Validate implements the check.Validatable interface.
func (l Log) Validate() []error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return []error{err}
	}
	return nil
}

// SetLogrus sets logrus globally.
func (l Log) SetLogrus() {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		panic(errors.Wrapf(err, "invalid log level %q", l.Level))
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   l.Color,
		DisableColors: !l.Color,
	})
}

// Validate implements the check.Validatable interface.
func (c Config) Validate() []error {
	return []error{
		check.NotEmpty(c.Region, "a region must be configured"),
		check.NotEmpty(c.HistoryPath, "a history path must be configured"),
	}
}

// Resolve expands the tilde shorthand in paths.
func (c *Config) Resolve() error {
	if strings.HasPrefix(c.HistoryPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "cannot resolve home directory")
		}
		c.HistoryPath = filepath.Join(home, c.HistoryPath[2:])
	}
	return nil
}
