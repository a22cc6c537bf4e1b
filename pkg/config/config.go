package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Challenge ChallengeConfig `yaml:"challenge" envconfig:"CHALLENGE"`
	Telegram  TelegramConfig  `yaml:"telegram" envconfig:"TELEGRAM"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Bootstrap BootstrapConfig `yaml:"bootstrap" envconfig:"BOOTSTRAP"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host    string `yaml:"host" envconfig:"HOST"`
	Port    int    `yaml:"port" envconfig:"PORT"`
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL"`
	// TrustedProxies is handed to gin so ClientIP honours X-Forwarded-For only from these peers.
	TrustedProxies []string `yaml:"trusted_proxies" envconfig:"TRUSTED_PROXIES"`
	// TrustForwardedProto marks the session cookie secure when X-Forwarded-Proto is https.
	TrustForwardedProto bool     `yaml:"trust_forwarded_proto" envconfig:"TRUST_FORWARDED_PROTO"`
	CORSOrigins         []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
}

// StorageConfig contains storage configuration
type StorageConfig struct {
	Type    string        `yaml:"type" envconfig:"TYPE"` // memory, mongodb
	MongoDB MongoDBConfig `yaml:"mongodb" envconfig:"MONGODB"`
}

// MongoDBConfig contains MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string `yaml:"uri" envconfig:"URI"`
	Database string `yaml:"database" envconfig:"DATABASE"`
	Timeout  int    `yaml:"timeout" envconfig:"TIMEOUT"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" envconfig:"FORMAT"` // json, text
}

// SessionConfig contains session token configuration
type SessionConfig struct {
	Secret     string `yaml:"secret" envconfig:"SECRET"`
	TTLSeconds int    `yaml:"ttl_seconds" envconfig:"TTL_SECONDS"`
	Issuer     string `yaml:"issuer" envconfig:"ISSUER"`
	CookieName string `yaml:"cookie_name" envconfig:"COOKIE_NAME"`
}

// TTL returns the session token lifetime
func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ChallengeConfig contains one-time code challenge configuration
type ChallengeConfig struct {
	TTLSeconds int `yaml:"ttl_seconds" envconfig:"TTL_SECONDS"`
	// MaxAttempts is the number of wrong codes after which a challenge is discarded (0 disables lockout)
	MaxAttempts            int `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds" envconfig:"CLEANUP_INTERVAL_SECONDS"`
}

// TTL returns the challenge validity window
func (c ChallengeConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// TelegramConfig contains the notification channel configuration
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" envconfig:"BOT_TOKEN"`
	// AdminChatID is the fallback notification address for admins without their own chat id
	AdminChatID    string `yaml:"admin_chat_id" envconfig:"ADMIN_CHAT_ID"`
	APIURL         string `yaml:"api_url" envconfig:"API_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"TIMEOUT_SECONDS"`
}

// Timeout returns the dispatch timeout
func (c TelegramConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SecurityConfig contains hardening options
type SecurityConfig struct {
	// GenericLoginErrors collapses unknown/inactive/expired/bad-password into one 401 response
	GenericLoginErrors bool                `yaml:"generic_login_errors" envconfig:"GENERIC_LOGIN_ERRORS"`
	RateLimit          AuthRateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	TokenDenylist      TokenDenylistConfig `yaml:"token_denylist" envconfig:"TOKEN_DENYLIST"`
}

// AuthRateLimitConfig configures rate limiting of the login endpoints
type AuthRateLimitConfig struct {
	Enabled        bool `yaml:"enabled" envconfig:"ENABLED"`
	MaxAttempts    int  `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	WindowSeconds  int  `yaml:"window_seconds" envconfig:"WINDOW_SECONDS"`
	LockoutSeconds int  `yaml:"lockout_seconds" envconfig:"LOCKOUT_SECONDS"`
}

// SetDefaults fills zero values
func (c *AuthRateLimitConfig) SetDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = 60
	}
	if c.LockoutSeconds <= 0 {
		c.LockoutSeconds = 300
	}
}

// TokenDenylistConfig configures revocation of session tokens
type TokenDenylistConfig struct {
	Enabled                bool `yaml:"enabled" envconfig:"ENABLED"`
	CleanupIntervalSeconds int  `yaml:"cleanup_interval_seconds" envconfig:"CLEANUP_INTERVAL_SECONDS"`
}

// SetDefaults fills zero values
func (c *TokenDenylistConfig) SetDefaults() {
	if c.CleanupIntervalSeconds <= 0 {
		c.CleanupIntervalSeconds = 300
	}
}

// BootstrapConfig describes the admin identity created on first start
type BootstrapConfig struct {
	AdminUsername string `yaml:"admin_username" envconfig:"ADMIN_USERNAME"`
	AdminPassword string `yaml:"admin_password" envconfig:"ADMIN_PASSWORD"`
	AdminChatID   string `yaml:"admin_chat_id" envconfig:"ADMIN_CHAT_ID"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, that's ok - we'll use defaults and env vars
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Environment variables have the highest priority
	if err := envconfig.Process("PANEL", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	return cfg, nil
}

// Default returns the built-in configuration, without file or environment overrides
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Storage: StorageConfig{
			Type: "memory",
			MongoDB: MongoDBConfig{
				URI:      "mongodb://localhost:27017",
				Database: "relay_panel",
				Timeout:  10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Session: SessionConfig{
			TTLSeconds: 86400,
			Issuer:     "relay-panel",
			CookieName: "auth_token",
		},
		Challenge: ChallengeConfig{
			TTLSeconds:             300,
			MaxAttempts:            5,
			CleanupIntervalSeconds: 60,
		},
		Telegram: TelegramConfig{
			APIURL:         "https://api.telegram.org",
			TimeoutSeconds: 10,
		},
		Security: SecurityConfig{
			RateLimit: AuthRateLimitConfig{
				Enabled:        true,
				MaxAttempts:    10,
				WindowSeconds:  60,
				LockoutSeconds: 300,
			},
			TokenDenylist: TokenDenylistConfig{
				Enabled:                true,
				CleanupIntervalSeconds: 300,
			},
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: "admin",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Storage.Type != "memory" && c.Storage.Type != "mongodb" {
		return fmt.Errorf("invalid storage type: %s (must be memory or mongodb)", c.Storage.Type)
	}

	if c.Storage.Type == "mongodb" && c.Storage.MongoDB.URI == "" {
		return fmt.Errorf("mongodb uri is required when using mongodb storage")
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required")
	}

	if c.Session.TTLSeconds <= 0 {
		return fmt.Errorf("invalid session ttl: %d", c.Session.TTLSeconds)
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("session cookie name is required")
	}

	if c.Challenge.TTLSeconds <= 0 {
		return fmt.Errorf("invalid challenge ttl: %d", c.Challenge.TTLSeconds)
	}

	if c.Challenge.MaxAttempts < 0 {
		return fmt.Errorf("invalid challenge max attempts: %d", c.Challenge.MaxAttempts)
	}

	if c.Telegram.BotToken != "" && c.Telegram.APIURL == "" {
		return fmt.Errorf("telegram api_url is required when a bot token is set")
	}

	return nil
}

// Address returns the server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
