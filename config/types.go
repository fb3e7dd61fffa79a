package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Session   SessionConfig   `mapstructure:"session"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Plex      PlexConfig      `mapstructure:"plex"`
	Radarr    RadarrConfig    `mapstructure:"radarr"`
	Sonarr    SonarrConfig    `mapstructure:"sonarr"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// PublicDetail allows fetching a single request without a session.
	PublicDetail bool `mapstructure:"public_detail"`
}

// SessionConfig describes the session cookie issued by the login frontend
type SessionConfig struct {
	Secret     string `mapstructure:"secret"`
	CookieName string `mapstructure:"cookie_name"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DatabaseConfig selects the request store backend
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	URL    string `mapstructure:"url"`
}

// PlexConfig holds Plex connection details
type PlexConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RadarrConfig holds Radarr API connection details and add defaults
type RadarrConfig struct {
	URL                 string        `mapstructure:"url"`
	APIKey              string        `mapstructure:"api_key"`
	RootFolder          string        `mapstructure:"root_folder"`
	QualityProfileID    int64         `mapstructure:"quality_profile_id"`
	MinimumAvailability string        `mapstructure:"minimum_availability"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// SonarrConfig holds Sonarr API connection details and add defaults
type SonarrConfig struct {
	URL              string        `mapstructure:"url"`
	APIKey           string        `mapstructure:"api_key"`
	RootFolder       string        `mapstructure:"root_folder"`
	QualityProfileID int64         `mapstructure:"quality_profile_id"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// NotifyConfig holds the availability e-mail settings
type NotifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	From    string `mapstructure:"from"`
}

// ReconcileConfig tunes the availability reconcile run
type ReconcileConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// FilterConfig contains named filter presets for listing requests
type FilterConfig struct {
	DefaultExpression string                  `mapstructure:"default"`
	Presets           map[string]PresetFilter `mapstructure:"presets"`
}

// PresetFilter is a named, reusable filter expression
type PresetFilter struct {
	Description string `mapstructure:"description"`
	Expression  string `mapstructure:"expression"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
