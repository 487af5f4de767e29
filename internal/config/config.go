// Package config provides configuration loading and management for the sync server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variables consumed via viper
const EnvPrefix = "LIFELOG"

const (
	// SourceTypeFitness is the type for activity/health data pulled from tracker APIs
	SourceTypeFitness = "fitness"

	// SourceTypeCalendar is the type for event data pulled from calendar services
	SourceTypeCalendar = "calendar"

	// SourceTypeFile is the type for records imported from a local JSON export
	SourceTypeFile = "file"
)

// Schedule kinds supported by the scheduler
const (
	ScheduleKindManual   = "manual"
	ScheduleKindInterval = "interval"
	ScheduleKindHourly   = "hourly"
	ScheduleKindDaily    = "daily"
	ScheduleKindWeekly   = "weekly"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// InstanceName is the name/identifier for this sync server instance
	// Defaults to "default" if not specified
	InstanceName string           `yaml:"instanceName,omitempty"`
	Sources      []SourceConfig   `yaml:"sources"`
	Sync         SyncConfig       `yaml:"sync,omitempty"`
	Scheduler    SchedulerConfig  `yaml:"scheduler,omitempty"`
	Store        *StoreConfig     `yaml:"store,omitempty"`
	Telemetry    *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// SourceConfig defines a single external integration source
type SourceConfig struct {
	// Name is the identifier for this source
	Name string `yaml:"name"`

	// Type selects the source implementation (fitness, calendar, or file)
	Type string `yaml:"type"`

	// Enabled controls whether this source participates in syncs
	Enabled bool `yaml:"enabled"`

	// Endpoint is the base API URL for network-backed sources
	Endpoint string `yaml:"endpoint,omitempty"`

	// Path is the path to a local JSON export for file sources
	Path string `yaml:"path,omitempty"`

	// Auth holds credentials for the source
	Auth *AuthConfig `yaml:"auth,omitempty"`

	// SyncInterval is the cadence used for interval schedules (e.g., "30m", "1h")
	SyncInterval string `yaml:"syncInterval,omitempty"`

	// RetentionDays bounds how long sync history for this source is retained
	RetentionDays int `yaml:"retentionDays,omitempty"`

	// RateLimit caps outbound requests to the vendor API
	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty"`
}

// AuthConfig holds credentials for a source
type AuthConfig struct {
	// AccessToken is the bearer token presented to the vendor API
	AccessToken string `yaml:"accessToken,omitempty"`

	// AccessTokenFile is a path to a file containing the access token.
	// Preferred over AccessToken for production deployments.
	AccessTokenFile string `yaml:"accessTokenFile,omitempty"`

	// RefreshToken, when set, allows one silent refresh attempt before an
	// authentication failure is surfaced
	RefreshToken string `yaml:"refreshToken,omitempty"`

	// ExpiresAt is the access token expiry, RFC 3339
	ExpiresAt *time.Time `yaml:"expiresAt,omitempty"`
}

// RateLimitConfig caps outbound requests to a vendor API
type RateLimitConfig struct {
	// MaxRequests is the maximum number of requests within Window
	MaxRequests int `yaml:"maxRequests"`

	// Window is the rate-limit window (e.g., "24h"). The request counter
	// resets on daily date rollover, so only 24h windows are honored;
	// other durations parse but do not change the reset cadence.
	Window string `yaml:"window,omitempty"`
}

// SyncConfig defines manager-level sync settings
type SyncConfig struct {
	// MaxConcurrentSyncs bounds how many sources SyncAll runs in parallel
	MaxConcurrentSyncs int `yaml:"maxConcurrentSyncs,omitempty"`

	// HistoryLimit bounds the number of retained sync results
	HistoryLimit int `yaml:"historyLimit,omitempty"`

	// CleanupInterval rate-limits history cleanup runs (e.g., "1h")
	CleanupInterval string `yaml:"cleanupInterval,omitempty"`
}

// SchedulerConfig defines scheduler settings
type SchedulerConfig struct {
	// PollInterval is the scheduler tick (e.g., "30s")
	PollInterval string `yaml:"pollInterval,omitempty"`

	// MaxConcurrentTasks bounds concurrently launched scheduled runs
	MaxConcurrentTasks int `yaml:"maxConcurrentTasks,omitempty"`

	// Window is the daily clock-hour range during which scheduled syncs fire.
	// StartHour > EndHour means an overnight window.
	Window *WindowConfig `yaml:"window,omitempty"`

	// RetryDelays is the ordered backoff ladder applied to failed runs
	RetryDelays []string `yaml:"retryDelays,omitempty"`

	// MaxRetries caps ladder steps before falling back to normal cadence
	MaxRetries int `yaml:"maxRetries,omitempty"`

	// Schedules seeds default schedules per source name
	Schedules map[string]ScheduleConfig `yaml:"schedules,omitempty"`
}

// WindowConfig is a daily clock-hour range
type WindowConfig struct {
	StartHour int `yaml:"startHour"`
	EndHour   int `yaml:"endHour"`
}

// ScheduleConfig seeds one default schedule
type ScheduleConfig struct {
	// Kind is one of manual, interval, hourly, daily, weekly
	Kind string `yaml:"kind"`

	// Interval applies to interval schedules (e.g., "45m")
	Interval string `yaml:"interval,omitempty"`

	// Hour applies to daily and weekly schedules (0-23)
	Hour int `yaml:"hour,omitempty"`

	// Weekday applies to weekly schedules (0=Sunday .. 6=Saturday)
	Weekday int `yaml:"weekday,omitempty"`
}

// StoreConfig defines the journal store settings
type StoreConfig struct {
	// Path is the SQLite database file path. Empty selects the in-memory store.
	Path string `yaml:"path,omitempty"`
}

// TelemetryConfig defines observability settings
type TelemetryConfig struct {
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// MetricsConfig defines OTLP metrics export settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`
}

// GetAccessToken returns the source access token using the following priority:
// 1. Read from AccessTokenFile if specified
// 2. The inline AccessToken value
//
// The token from file will have leading/trailing whitespace trimmed.
func (a *AuthConfig) GetAccessToken() (string, error) {
	if a == nil {
		return "", fmt.Errorf("no auth configured")
	}

	if a.AccessTokenFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(a.AccessTokenFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read access token from file %s: %w", a.AccessTokenFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if a.AccessToken != "" {
		return a.AccessToken, nil
	}

	return "", fmt.Errorf("no access token configured: set accessToken or accessTokenFile")
}

// IsExpired reports whether the access token is past its expiry at the given time
func (a *AuthConfig) IsExpired(now time.Time) bool {
	if a == nil || a.ExpiresAt == nil {
		return false
	}
	return now.After(*a.ExpiresAt)
}

// WindowDuration parses the rate-limit window, defaulting to 24 hours
func (r *RateLimitConfig) WindowDuration() (time.Duration, error) {
	if r == nil || r.Window == "" {
		return 24 * time.Hour, nil
	}
	return time.ParseDuration(r.Window)
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetInstanceName returns the instance name, using "default" if not specified
func (c *Config) GetInstanceName() string {
	if c.InstanceName == "" {
		return "default"
	}
	return c.InstanceName
}

// GetSource returns the source configuration with the given name, or nil
func (c *Config) GetSource(name string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i]
		}
	}
	return nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	// Validate at least one source is configured
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}

	// Validate each source configuration
	sourceNames := make(map[string]bool)
	for i := range c.Sources {
		src := &c.Sources[i]
		if src.Name == "" {
			return fmt.Errorf("source[%d]: name is required", i)
		}

		// Check for duplicate source names
		if sourceNames[src.Name] {
			return fmt.Errorf("source[%d]: duplicate source name '%s'", i, src.Name)
		}
		sourceNames[src.Name] = true

		if err := src.Validate(); err != nil {
			return fmt.Errorf("source[%d] (%s): %w", i, src.Name, err)
		}
	}

	if err := c.Scheduler.validate(sourceNames); err != nil {
		return err
	}

	return c.Sync.validate()
}

// Validate validates a single source configuration
func (s *SourceConfig) Validate() error {
	switch s.Type {
	case SourceTypeFitness, SourceTypeCalendar:
		if s.Endpoint == "" {
			return fmt.Errorf("endpoint is required for %s sources", s.Type)
		}
	case SourceTypeFile:
		if s.Path == "" {
			return fmt.Errorf("path is required for file sources")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unsupported source type: %s", s.Type)
	}

	if s.SyncInterval != "" {
		if _, err := time.ParseDuration(s.SyncInterval); err != nil {
			return fmt.Errorf("syncInterval must be a valid duration (e.g., '30m', '1h'): %w", err)
		}
	}

	if s.RetentionDays < 0 {
		return fmt.Errorf("retentionDays cannot be negative")
	}

	if s.RateLimit != nil {
		if s.RateLimit.MaxRequests <= 0 {
			return fmt.Errorf("rateLimit.maxRequests must be positive")
		}
		if _, err := s.RateLimit.WindowDuration(); err != nil {
			return fmt.Errorf("rateLimit.window must be a valid duration: %w", err)
		}
	}

	return nil
}

// validate validates the scheduler configuration
func (s *SchedulerConfig) validate(sourceNames map[string]bool) error {
	if s.PollInterval != "" {
		if _, err := time.ParseDuration(s.PollInterval); err != nil {
			return fmt.Errorf("scheduler.pollInterval must be a valid duration: %w", err)
		}
	}

	if s.MaxConcurrentTasks < 0 {
		return fmt.Errorf("scheduler.maxConcurrentTasks cannot be negative")
	}

	if s.Window != nil {
		if s.Window.StartHour < 0 || s.Window.StartHour > 23 {
			return fmt.Errorf("scheduler.window.startHour must be in 0..23")
		}
		if s.Window.EndHour < 0 || s.Window.EndHour > 23 {
			return fmt.Errorf("scheduler.window.endHour must be in 0..23")
		}
	}

	for i, delay := range s.RetryDelays {
		if _, err := time.ParseDuration(delay); err != nil {
			return fmt.Errorf("scheduler.retryDelays[%d] must be a valid duration: %w", i, err)
		}
	}

	for name, sched := range s.Schedules {
		if !sourceNames[name] {
			return fmt.Errorf("scheduler.schedules: unknown source '%s'", name)
		}
		switch sched.Kind {
		case ScheduleKindManual, ScheduleKindHourly:
		case ScheduleKindInterval:
			if sched.Interval != "" {
				if _, err := time.ParseDuration(sched.Interval); err != nil {
					return fmt.Errorf("scheduler.schedules[%s].interval must be a valid duration: %w", name, err)
				}
			}
		case ScheduleKindDaily, ScheduleKindWeekly:
			if sched.Hour < 0 || sched.Hour > 23 {
				return fmt.Errorf("scheduler.schedules[%s].hour must be in 0..23", name)
			}
			if sched.Kind == ScheduleKindWeekly && (sched.Weekday < 0 || sched.Weekday > 6) {
				return fmt.Errorf("scheduler.schedules[%s].weekday must be in 0..6", name)
			}
		default:
			return fmt.Errorf("scheduler.schedules[%s]: unsupported kind '%s'", name, sched.Kind)
		}
	}

	return nil
}

// validate validates the sync configuration
func (s *SyncConfig) validate() error {
	if s.MaxConcurrentSyncs < 0 {
		return fmt.Errorf("sync.maxConcurrentSyncs cannot be negative")
	}
	if s.HistoryLimit < 0 {
		return fmt.Errorf("sync.historyLimit cannot be negative")
	}
	if s.CleanupInterval != "" {
		if _, err := time.ParseDuration(s.CleanupInterval); err != nil {
			return fmt.Errorf("sync.cleanupInterval must be a valid duration: %w", err)
		}
	}
	return nil
}
