// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/seatreport/lib/report"
)

// Environment variable names.
const (
	EnvConfig     = "SEATREPORT_CONFIG"
	EnvEnterprise = "ENTERPRISE_SLUG"
	EnvToken      = "AUTH_TOKEN"
	EnvBaseURL    = "GITHUB_API_URL"
)

// DefaultEnvFile is read when no dotenv file is named. Its absence is
// not an error.
const DefaultEnvFile = ".env"

// Config is the complete seatreport configuration.
type Config struct {
	// Enterprise is the enterprise slug. Required.
	Enterprise string `yaml:"enterprise"`

	// Token is the bearer token. Required. Prefer AUTH_TOKEN over
	// putting it in a file.
	Token string `yaml:"token"`

	// BaseURL is the REST API root. GitHub Enterprise Server uses
	// https://HOST/api/v3.
	BaseURL string `yaml:"base_url"`

	Fetch  FetchConfig  `yaml:"fetch"`
	Join   JoinConfig   `yaml:"join"`
	Output OutputConfig `yaml:"output"`
	Cache  CacheConfig  `yaml:"cache"`
	Log    LogConfig    `yaml:"log"`
}

// FetchConfig controls how the GitHub API is called.
type FetchConfig struct {
	// PerPage is the list page size, at most 100.
	PerPage int `yaml:"per_page"`

	// Workers bounds concurrent membership and profile requests.
	Workers int `yaml:"workers"`

	// RequestsPerSecond caps the request rate. Zero disables the cap.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// MaxRetries bounds retries of transient failures. Zero disables
	// retry.
	MaxRetries int `yaml:"max_retries"`

	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`

	// Timeout bounds each HTTP request. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// RetryLimit converts MaxRetries to the github.Config convention,
// where zero selects the default and a negative value disables retry.
func (fetch FetchConfig) RetryLimit() int {
	if fetch.MaxRetries == 0 {
		return -1
	}
	return fetch.MaxRetries
}

// JoinConfig selects the join policy.
type JoinConfig struct {
	// Mode is "memberships" or "seats".
	Mode string `yaml:"mode"`

	// Unmatched is "emit" or "drop".
	Unmatched string `yaml:"unmatched"`
}

// OutputConfig controls the report file.
type OutputConfig struct {
	// Path is the CSV path, or "-" for stdout. Compression and
	// encryption extensions are appended.
	Path string `yaml:"path"`

	// Compression is none, gzip, zstd, or lz4.
	Compression string `yaml:"compression"`

	// Digest writes a BLAKE3 sidecar next to the report.
	Digest bool `yaml:"digest"`

	// SkipEmpty writes nothing when the report has no rows.
	SkipEmpty bool `yaml:"skip_empty"`

	// Recipients are age public keys to encrypt the report to.
	Recipients []string `yaml:"recipients"`
}

// CacheConfig controls the on-disk profile cache.
type CacheConfig struct {
	// Path enables the cache when non-empty.
	Path string `yaml:"path"`

	TTL time.Duration `yaml:"ttl"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is auto, text, json, or console.
	Format string `yaml:"format"`

	// File, when set, also receives JSON log records.
	File string `yaml:"file"`
}

// Log formats.
const (
	LogFormatAuto    = "auto"
	LogFormatText    = "text"
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		BaseURL: "https://api.github.com",
		Fetch: FetchConfig{
			PerPage:              100,
			Workers:              4,
			MaxRetries:           3,
			RetryInitialInterval: time.Second,
			Timeout:              30 * time.Second,
		},
		Join: JoinConfig{
			Mode:      string(report.JoinMemberships),
			Unmatched: string(report.UnmatchedEmit),
		},
		Output: OutputConfig{
			Path:        "copilot_seats.csv",
			Compression: string(report.CompressionNone),
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatAuto,
		},
	}
}

// LoadOptions names the inputs to Load.
type LoadOptions struct {
	// ConfigPath is the config file. Empty falls back to
	// SEATREPORT_CONFIG; if that is also empty no file is read.
	ConfigPath string

	// EnvFile is the dotenv file. Empty selects DefaultEnvFile, which
	// may be absent. A named file must exist.
	EnvFile string

	// Environ is the process environment in "KEY=value" form.
	// Defaults to os.Environ().
	Environ []string
}

// Load builds a Config from defaults, the config file, the dotenv
// file, and the environment. It does not validate.
func Load(options LoadOptions) (*Config, error) {
	environment, err := loadEnvironment(options)
	if err != nil {
		return nil, err
	}

	cfg := Default()

	configPath := options.ConfigPath
	if configPath == "" {
		configPath = environment[EnvConfig]
	}
	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvironment(environment)
	cfg.expandVariables(environment)
	return cfg, nil
}

// loadEnvironment merges the dotenv file underneath the process
// environment, so real environment variables always win.
func loadEnvironment(options LoadOptions) (map[string]string, error) {
	environ := options.Environ
	if environ == nil {
		environ = os.Environ()
	}

	environment := make(map[string]string)

	envFile := options.EnvFile
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}
	values, err := godotenv.Read(envFile)
	switch {
	case err == nil:
		for key, value := range values {
			environment[key] = value
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: reading env file %s: %w", envFile, err)
	}

	for _, entry := range environ {
		key, value, found := strings.Cut(entry, "=")
		if found {
			environment[key] = value
		}
	}
	return environment, nil
}

// loadFile merges a config file into c. JSON is valid YAML, so JSONC
// files are reduced to JSON and decoded with the same YAML tags.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironment(environment map[string]string) {
	if value := environment[EnvEnterprise]; value != "" {
		c.Enterprise = value
	}
	if value := environment[EnvToken]; value != "" {
		c.Token = value
	}
	if value := environment[EnvBaseURL]; value != "" {
		c.BaseURL = value
	}
}

func (c *Config) expandVariables(environment map[string]string) {
	vars := map[string]string{
		"HOME": environment["HOME"],
	}
	c.Output.Path = expandVars(c.Output.Path, vars, environment)
	c.Cache.Path = expandVars(c.Cache.Path, vars, environment)
	c.Log.File = expandVars(c.Log.File, vars, environment)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars, environment map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := environment[name]; value != "" {
			return value
		}
		return defaultValue
	})
}

// ConfigError reports one invalid or missing configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Validate checks the configuration. Every problem found is reported;
// each joined error is a *ConfigError.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if c.Enterprise == "" {
		invalid("enterprise", "required (set %s or --enterprise)", EnvEnterprise)
	}
	if c.Token == "" {
		invalid("token", "required (set %s)", EnvToken)
	}
	if !strings.HasPrefix(c.BaseURL, "https://") {
		invalid("base_url", "must use https (got %q)", c.BaseURL)
	}

	if c.Fetch.PerPage < 1 || c.Fetch.PerPage > 100 {
		invalid("fetch.per_page", "must be between 1 and 100 (got %d)", c.Fetch.PerPage)
	}
	if c.Fetch.Workers < 1 {
		invalid("fetch.workers", "must be positive (got %d)", c.Fetch.Workers)
	}
	if c.Fetch.RequestsPerSecond < 0 {
		invalid("fetch.requests_per_second", "must not be negative (got %g)", c.Fetch.RequestsPerSecond)
	}
	if c.Fetch.MaxRetries < 0 {
		invalid("fetch.max_retries", "must not be negative (got %d)", c.Fetch.MaxRetries)
	}
	if c.Fetch.RetryInitialInterval < 0 {
		invalid("fetch.retry_initial_interval", "must not be negative (got %s)", c.Fetch.RetryInitialInterval)
	}
	if c.Fetch.Timeout < 0 {
		invalid("fetch.timeout", "must not be negative (got %s)", c.Fetch.Timeout)
	}

	if _, err := report.ParseJoinMode(c.Join.Mode); err != nil {
		invalid("join.mode", "%v", err)
	}
	if _, err := report.ParseUnmatchedPolicy(c.Join.Unmatched); err != nil {
		invalid("join.unmatched", "%v", err)
	}

	if c.Output.Path == "" {
		invalid("output.path", "required")
	}
	if c.Output.Path == report.StdoutPath && c.Output.Digest {
		invalid("output.digest", "no digest sidecar can be written when output.path is %q", report.StdoutPath)
	}
	if _, err := report.ParseCompression(c.Output.Compression); err != nil {
		invalid("output.compression", "%v", err)
	}
	if len(c.Output.Recipients) > 0 {
		if _, err := report.ParseRecipients(c.Output.Recipients); err != nil {
			invalid("output.recipients", "%v", err)
		}
	}

	if c.Cache.TTL < 0 {
		invalid("cache.ttl", "must not be negative (got %s)", c.Cache.TTL)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		invalid("log.level", "unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case LogFormatAuto, LogFormatText, LogFormatJSON, LogFormatConsole:
	default:
		invalid("log.format", "unknown format %q (want auto, text, json, or console)", c.Log.Format)
	}

	return errors.Join(errs...)
}

// LogLevel returns the parsed log level. Call Validate first; an
// unparseable level yields slog.LevelInfo.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
