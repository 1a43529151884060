package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Default values applied before the config file and environment are read.
const (
	DefaultPort                       = 8080
	DefaultLogLevel                   = "info"
	DefaultMaxOpenConns               = 25
	DefaultMaxIdleConns               = 25
	DefaultConnMaxLifetimeMinutes     = 5
	DefaultTokenLifetimeMinutes       = 60
	DefaultMinBasePrice               = 0.0
	DefaultAssignBudgetFromBasePrice  = true
	DefaultCandidateLimit             = 20
	DefaultPendingExpiryMinutes       = 0
	DefaultExpirySweepIntervalSeconds = 60
	DefaultGeocodingTimeoutSeconds    = 5
	DefaultGeocodingBaseURL           = "https://api.opencagedata.com/geocode/v1/json"
	DefaultAIModel                    = "gemini-2.0-flash"
	DefaultAITimeoutSeconds           = 20

	// EnvPrefix is prepended to every environment variable name.
	EnvPrefix = "QUICKSERVE"
)

// DefaultServiceTypes is the service catalogue used when none is configured.
var DefaultServiceTypes = []string{
	"AC Repair",
	"Electrician",
	"Plumber",
	"Cleaner",
	"Carpenter",
	"Painter",
	"Appliance Repair",
}

// Load reads configuration from defaults, an optional config.yaml in the
// working directory, and environment variables, in increasing precedence.
// Environment variables use the QUICKSERVE_ prefix with "." replaced by "_",
// e.g. QUICKSERVE_DATABASE_URL.
func Load() (*Config, error) {
	return load(".")
}

func load(configPaths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	for _, key := range []string{
		"database.url", "auth.jwt_secret",
		"geocoding.api_key", "documents.dir", "documents.base_url",
		"ai.api_key",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Matching.ServiceAliases = normalizeAliases(cfg.Matching.ServiceAliases)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.log_level", DefaultLogLevel)
	v.SetDefault("database.max_open_conns", DefaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", DefaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime_minutes", DefaultConnMaxLifetimeMinutes)
	v.SetDefault("auth.token_lifetime_minutes", DefaultTokenLifetimeMinutes)
	v.SetDefault("matching.service_types", DefaultServiceTypes)
	v.SetDefault("matching.service_aliases", map[string]string{})
	v.SetDefault("matching.min_base_price", DefaultMinBasePrice)
	v.SetDefault("matching.assign_budget_from_base_price", DefaultAssignBudgetFromBasePrice)
	v.SetDefault("matching.candidate_limit", DefaultCandidateLimit)
	v.SetDefault("matching.pending_expiry_minutes", DefaultPendingExpiryMinutes)
	v.SetDefault("matching.expiry_sweep_interval_seconds", DefaultExpirySweepIntervalSeconds)
	v.SetDefault("geocoding.timeout_seconds", DefaultGeocodingTimeoutSeconds)
	v.SetDefault("geocoding.base_url", DefaultGeocodingBaseURL)
	v.SetDefault("ai.model", DefaultAIModel)
	v.SetDefault("ai.timeout_seconds", DefaultAITimeoutSeconds)
}

// Validate checks cfg against its validate tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if cfg.Documents.Dir != "" && cfg.Documents.BaseURL == "" {
		return fmt.Errorf("configuration validation failed: documents.base_url is required when documents.dir is set")
	}
	return nil
}

// normalizeAliases lower-cases and trims alias keys. Viper already lowercases
// keys read from files; keys set in code may not be.
func normalizeAliases(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

// DefaultMatchingConfig returns the matching settings Load produces when
// nothing is configured.
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		ServiceTypes:               append([]string(nil), DefaultServiceTypes...),
		ServiceAliases:             map[string]string{},
		MinBasePrice:               DefaultMinBasePrice,
		AssignBudgetFromBasePrice:  DefaultAssignBudgetFromBasePrice,
		CandidateLimit:             DefaultCandidateLimit,
		PendingExpiryMinutes:       DefaultPendingExpiryMinutes,
		ExpirySweepIntervalSeconds: DefaultExpirySweepIntervalSeconds,
	}
}
