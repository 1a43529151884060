package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Matching  MatchingConfig  `mapstructure:"matching" validate:"required"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Documents DocumentsConfig `mapstructure:"documents"`
	AI        AIConfig        `mapstructure:"ai"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL                    string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}

// MatchingConfig holds the business settings of the dispatch engine. It is
// loaded once at startup and injected into the services.
type MatchingConfig struct {
	// ServiceTypes is the catalogue of canonical service types. An empty
	// catalogue accepts any service type.
	ServiceTypes []string `mapstructure:"service_types"`

	// ServiceAliases maps a synonym to a canonical service type. Keys are
	// matched case-insensitively.
	ServiceAliases map[string]string `mapstructure:"service_aliases"`

	MinBasePrice              float64 `mapstructure:"min_base_price" validate:"gte=0"`
	AssignBudgetFromBasePrice bool    `mapstructure:"assign_budget_from_base_price"`
	CandidateLimit            int     `mapstructure:"candidate_limit" validate:"gt=0,lte=100"`

	// PendingExpiryMinutes cancels pending requests older than this many
	// minutes. Zero disables expiry.
	PendingExpiryMinutes       int `mapstructure:"pending_expiry_minutes" validate:"gte=0"`
	ExpirySweepIntervalSeconds int `mapstructure:"expiry_sweep_interval_seconds" validate:"gt=0"`
}

// GeocodingConfig configures the reverse geocoding collaborator. An empty
// APIKey disables geocoding.
type GeocodingConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url" validate:"omitempty,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// DocumentsConfig configures where KYC uploads are kept. An empty Dir
// disables file uploads; submissions must then carry URLs.
type DocumentsConfig struct {
	Dir     string `mapstructure:"dir"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

// AIConfig configures image analysis. An empty APIKey disables it.
type AIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}
