// Package config loads, validates, and generates the pushback configuration:
// a YAML file in the user's config directory, layered with BK_-prefixed
// environment overrides (optionally via a .env file) that take precedence
// over the file's values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pushback-tool/pushback/pkg/buildinfo"
	"github.com/pushback-tool/pushback/pkg/hook"
	"github.com/pushback-tool/pushback/pkg/plog"
	"github.com/pushback-tool/pushback/pkg/remote"
	"github.com/pushback-tool/pushback/pkg/snapshot"
	"github.com/pushback-tool/pushback/pkg/util"
)

// ConfigFileName is the name of the configuration file inside the config
// directory.
const ConfigFileName = "config.yaml"

// envPrefix namespaces the environment overrides.
const envPrefix = "BK_"

type SnapshotConfig struct {
	Mode        snapshot.Mode `yaml:"mode"`
	CustomHours int           `yaml:"custom_hours"`
}

type Config struct {
	LogLevel     string                 `yaml:"log_level"`
	GlobalIgnore string                 `yaml:"global_ignore"`
	LargeFileMB  int64                  `yaml:"large_file_mb"`
	DeleteRemote bool                   `yaml:"delete_remote"`
	Multiplex    bool                   `yaml:"multiplex"`
	Snapshot     SnapshotConfig         `yaml:"snapshot"`
	Hooks        hook.Commands          `yaml:"hooks"`
	Remotes      map[string]remote.Host `yaml:"remotes"`
}

// envOverrides mirrors the BK_-prefixed variables the tool honors. Pointer
// fields distinguish "unset" from an explicit zero.
type envOverrides struct {
	RemoteUser          *string `env:"REMOTE_USER"`
	RemoteHost          *string `env:"REMOTE_HOST"`
	RemotePort          *int    `env:"REMOTE_PORT"`
	RemoteBase          *string `env:"REMOTE_BASE"`
	LargeFileMB         *int64  `env:"LARGE_FILE_MB"`
	DeleteRemote        *bool   `env:"DELETE_REMOTE"`
	GlobalIgnore        *string `env:"GLOBAL_IGNORE"`
	SnapshotMode        *string `env:"SNAPSHOT_MODE"`
	SnapshotCustomHours *int    `env:"SNAPSHOT_CUSTOM_HOURS"`
	LogLevel            *string `env:"LOG_LEVEL"`
}

// DefaultPath returns the configuration file location, honoring
// XDG_CONFIG_HOME.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, buildinfo.Name, ConfigFileName)
}

// NewDefault creates a Config with placeholder remote values that force the
// user to edit the generated file before the first run.
func NewDefault() Config {
	return Config{
		LogLevel:     "info",
		GlobalIgnore: "~/.config/" + buildinfo.Name + "/global-ignore.txt",
		LargeFileMB:  200,
		DeleteRemote: false,
		Multiplex:    true,
		Snapshot: SnapshotConfig{
			Mode:        snapshot.None,
			CustomHours: 24,
		},
		Remotes: map[string]remote.Host{
			"main": {
				User:    "your_user",
				Host:    "your.host.example",
				Port:    22,
				Base:    "~/" + buildinfo.Name,
				Default: true,
			},
		},
	}
}

// Load reads the configuration file at path, layered over the defaults so
// missing fields keep sensible values. A missing file yields the defaults
// without an error; a file that exists but does not parse is fatal.
func Load(path string) (Config, error) {
	config := NewDefault()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return Config{}, fmt.Errorf("error opening config file %s: %w", path, err)
	}

	plog.Debug("Loading configuration", "path", path)
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	for name, host := range config.Remotes {
		host.Name = name
		if host.Port == 0 {
			host.Port = 22
		}
		if host.Base == "" {
			host.Base = "~/" + buildinfo.Name
		}
		config.Remotes[name] = host
	}
	return config, nil
}

// ApplyEnv layers BK_-prefixed environment variables over the configuration.
// A .env file in the working directory is folded into the environment first,
// without overriding variables that are already set. Remote overrides apply
// to every configured remote, matching a single-remote workflow where the
// environment points all traffic at one host.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error loading .env file: %w", err)
	}

	var overrides envOverrides
	if err := env.ParseWithOptions(&overrides, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("error parsing environment overrides: %w", err)
	}

	if overrides.LogLevel != nil {
		c.LogLevel = *overrides.LogLevel
	}
	if overrides.GlobalIgnore != nil {
		c.GlobalIgnore = *overrides.GlobalIgnore
	}
	if overrides.LargeFileMB != nil {
		c.LargeFileMB = *overrides.LargeFileMB
	}
	if overrides.DeleteRemote != nil {
		c.DeleteRemote = *overrides.DeleteRemote
	}
	if overrides.SnapshotMode != nil {
		mode, err := snapshot.ParseMode(*overrides.SnapshotMode)
		if err != nil {
			return err
		}
		c.Snapshot.Mode = mode
	}
	if overrides.SnapshotCustomHours != nil {
		c.Snapshot.CustomHours = *overrides.SnapshotCustomHours
	}

	for name, host := range c.Remotes {
		if overrides.RemoteUser != nil {
			host.User = *overrides.RemoteUser
		}
		if overrides.RemoteHost != nil {
			host.Host = *overrides.RemoteHost
		}
		if overrides.RemotePort != nil {
			host.Port = *overrides.RemotePort
		}
		if overrides.RemoteBase != nil {
			host.Base = *overrides.RemoteBase
		}
		c.Remotes[name] = host
	}
	return nil
}

// Validate checks the configuration for logical errors. Configuration errors
// are fatal and abort before any remote contact.
func (c *Config) Validate() error {
	if c.LargeFileMB < 0 {
		return fmt.Errorf("large_file_mb cannot be negative, got %d", c.LargeFileMB)
	}
	if c.Snapshot.Mode == snapshot.Custom && c.Snapshot.CustomHours <= 0 {
		return fmt.Errorf("%w: got %d", snapshot.ErrInvalidCustomHours, c.Snapshot.CustomHours)
	}
	if len(c.Remotes) == 0 {
		return fmt.Errorf("no remotes configured, run '%s init' and edit the config", buildinfo.Name)
	}
	for _, host := range c.Remotes {
		if err := host.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SelectRemotes picks the remotes a run targets: the named ones when names
// are given (each must exist, duplicates collapse to one push), otherwise
// every remote marked default.
func (c *Config) SelectRemotes(names []string) ([]remote.Host, error) {
	var selected []remote.Host

	if len(names) > 0 {
		for _, name := range util.MergeAndDeduplicate(names) {
			host, ok := c.Remotes[name]
			if !ok {
				return nil, fmt.Errorf("remote %q not found in config", name)
			}
			selected = append(selected, host)
		}
		return selected, nil
	}

	names = make([]string, 0, len(c.Remotes))
	for name := range c.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if host := c.Remotes[name]; host.Default {
			selected = append(selected, host)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no default remotes configured (set 'default: true' in the config)")
	}
	return selected, nil
}

// Generate writes a fresh configuration file to path, creating parent
// directories as needed. It refuses to overwrite an existing file.
func Generate(path string, config Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing config: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), util.PrivateDirPerms); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, util.PrivateFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	plog.Info("Successfully saved config file", "path", path)
	return nil
}
