// Package config loads importer settings from environment variables with
// defaults, and validates them on startup so misconfiguration fails before
// any file is read.
package config

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config holds all importer configuration.
type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds PostgreSQL connection settings. URL wins over the
// individual parts when set.
type DatabaseConfig struct {
	// URL is a full connection string; DB_URL is accepted too
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	Host     string `env:"DB_HOST" default:"localhost"`
	Port     int    `env:"DB_PORT" default:"5432"`
	User     string `env:"DB_USER" default:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" default:"nonprofit"`

	// SSLMode is disable, require, verify-ca or verify-full (default: disable)
	SSLMode string `env:"DB_SSLMODE" default:"disable"`

	// MaxConns caps the pool; the importer is single-threaded (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// DataDir is where the per-entity CSV files live (default: data)
	DataDir string `env:"IMPORT_DATA_DIR" default:"data"`

	// HashCost is the bcrypt cost for plaintext credentials (default: 10)
	HashCost int `env:"IMPORT_HASH_COST" default:"10"`

	// ReportPath, when set, receives a JSON or YAML copy of the run report
	ReportPath string `env:"IMPORT_REPORT_PATH"`

	// MaxFileSize is the largest accepted CSV in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`

	// Timezone applies to timestamps written without an offset (default: UTC)
	Timezone string `env:"IMPORT_TIMEZONE" default:"UTC"`

	// Entities limits a run to these entity keys; empty means all
	Entities []string `env:"IMPORT_ENTITIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ConnString returns the connection string handed to pgxpool.
func (c *DatabaseConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else if c.User != "" {
		u.User = url.User(c.User)
	}

	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if secs := int(c.ConnectTimeout / time.Second); secs > 0 {
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Location resolves Timezone. Validate has already rejected unknown names.
func (c *ImportConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}
