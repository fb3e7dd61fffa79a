package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads the configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// REQUESTARR_RADARR_API_KEY overrides radarr.api_key and so on
	v.SetEnvPrefix("requestarr")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".requestarr"))
		}

		// Check /etc
		v.AddConfigPath("/etc/requestarr/")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_detail", false)

	v.SetDefault("session.cookie_name", "sessionid")
	v.SetDefault("session.max_age", 86400*7)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "requestarr.db")

	// Plex defaults
	v.SetDefault("plex.url", "http://127.0.0.1:32400")
	v.SetDefault("plex.timeout", 10*time.Second)

	// Radarr defaults
	v.SetDefault("radarr.url", "http://127.0.0.1:7878")
	v.SetDefault("radarr.quality_profile_id", 1)
	v.SetDefault("radarr.minimum_availability", "released")
	v.SetDefault("radarr.timeout", 10*time.Second)

	// Sonarr defaults
	v.SetDefault("sonarr.url", "http://127.0.0.1:8989")
	v.SetDefault("sonarr.quality_profile_id", 1)
	v.SetDefault("sonarr.timeout", 10*time.Second)

	v.SetDefault("reconcile.concurrency", 4)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Session.Secret == "" {
		return fmt.Errorf("session.secret is required")
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database.driver: %s (must be 'sqlite' or 'postgres')", cfg.Database.Driver)
	}

	if cfg.Plex.URL == "" {
		return fmt.Errorf("plex.url is required")
	}

	if cfg.Radarr.URL == "" {
		return fmt.Errorf("radarr.url is required")
	}
	if cfg.Radarr.APIKey == "" || cfg.Radarr.APIKey == "your-api-key-here" {
		return fmt.Errorf("radarr.api_key must be set to a valid API key")
	}
	if cfg.Radarr.RootFolder == "" {
		return fmt.Errorf("radarr.root_folder is required")
	}

	if cfg.Sonarr.URL == "" {
		return fmt.Errorf("sonarr.url is required")
	}
	if cfg.Sonarr.APIKey == "" || cfg.Sonarr.APIKey == "your-api-key-here" {
		return fmt.Errorf("sonarr.api_key must be set to a valid API key")
	}
	if cfg.Sonarr.RootFolder == "" {
		return fmt.Errorf("sonarr.root_folder is required")
	}

	if cfg.Notify.Enabled && (cfg.Notify.APIKey == "" || cfg.Notify.From == "") {
		return fmt.Errorf("notify.api_key and notify.from are required when notify.enabled is set")
	}

	if cfg.Reconcile.Concurrency < 1 {
		return fmt.Errorf("reconcile.concurrency must be at least 1")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
