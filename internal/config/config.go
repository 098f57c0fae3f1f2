// Package config loads vaultrev settings from a YAML file, VAULTREV_*
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// DefaultConfigFile is read from the working directory when no explicit
// path is given and the file exists.
const DefaultConfigFile = "vaultrev.yaml"

// Database selects and addresses one backend.
type Database struct {
	Driver string // sqlite | mysql
	Path   string // sqlite file
	DSN    string // mysql DSN
}

// Configured reports whether any location is set.
func (d Database) Configured() bool {
	return d.Path != "" || d.DSN != ""
}

// Log controls the CLI logger.
type Log struct {
	Level  string // debug | info | warn | error
	Format string // text | json
}

// Telemetry controls OpenTelemetry export.
type Telemetry struct {
	Enabled bool
	Stdout  bool
}

// Sync controls the sync driver.
type Sync struct {
	Author     int64
	MaxElapsed time.Duration
}

// Resolve controls the conflict resolver.
type Resolve struct {
	Strict bool
}

// Config is the full set of vaultrev settings.
type Config struct {
	Database  Database
	Remote    Database
	Log       Log
	Telemetry Telemetry
	Sync      Sync
	Resolve   Resolve
}

// Load reads configuration. An empty path falls back to DefaultConfigFile
// when present; a missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VAULTREV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Database: Database{
			Driver: v.GetString("database.driver"),
			Path:   v.GetString("database.path"),
			DSN:    v.GetString("database.dsn"),
		},
		Remote: Database{
			Driver: v.GetString("remote.driver"),
			Path:   v.GetString("remote.path"),
			DSN:    v.GetString("remote.dsn"),
		},
		Log: Log{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Telemetry: Telemetry{
			Enabled: v.GetBool("telemetry.enabled"),
			Stdout:  v.GetBool("telemetry.stdout"),
		},
		Sync: Sync{
			Author:     v.GetInt64("sync.author"),
			MaxElapsed: v.GetDuration("sync.max_elapsed"),
		},
		Resolve: Resolve{
			Strict: v.GetBool("resolve.strict"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("remote.driver", DriverSQLite)
	v.SetDefault("remote.path", "")
	v.SetDefault("remote.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)
	v.SetDefault("sync.author", 0)
	v.SetDefault("sync.max_elapsed", 30*time.Second)
	v.SetDefault("resolve.strict", false)
}

var (
	validDrivers    = map[string]bool{DriverSQLite: true, DriverMySQL: true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.Database.validate("database")...)
	errs = append(errs, c.Remote.validate("remote")...)

	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Errorf("log.level: invalid value %q (valid: debug, info, warn, error)", c.Log.Level))
	}
	if !validLogFormats[c.Log.Format] {
		errs = append(errs, fmt.Errorf("log.format: invalid value %q (valid: text, json)", c.Log.Format))
	}
	if c.Telemetry.Stdout && !c.Telemetry.Enabled {
		errs = append(errs, errors.New("telemetry.stdout requires telemetry.enabled"))
	}
	if c.Sync.Author < 0 {
		errs = append(errs, fmt.Errorf("sync.author: must not be negative, got %d", c.Sync.Author))
	}
	if c.Sync.MaxElapsed < 0 {
		errs = append(errs, fmt.Errorf("sync.max_elapsed: must not be negative, got %s", c.Sync.MaxElapsed))
	}

	return errors.Join(errs...)
}

func (d Database) validate(section string) []error {
	var errs []error
	if !validDrivers[d.Driver] {
		errs = append(errs, fmt.Errorf("%s.driver: invalid value %q (valid: sqlite, mysql)", section, d.Driver))
		return errs
	}
	if d.Driver == DriverSQLite && d.DSN != "" {
		errs = append(errs, fmt.Errorf("%s.dsn is only valid with driver mysql", section))
	}
	if d.Driver == DriverMySQL && d.Path != "" {
		errs = append(errs, fmt.Errorf("%s.path is only valid with driver sqlite", section))
	}
	return errs
}
