// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// OAuth callback modes.
const (
	CallbackModeDirect = "direct"
	CallbackModeOOB    = "oob"
)

// Database drivers and migration modes.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	MigrateAuto = "auto"
	MigrateSQL  = "sql"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	OAuth      OAuthConfig      `mapstructure:"oauth"`
	MediaWiki  MediaWikiConfig  `mapstructure:"mediawiki"`
	Mattermost MattermostConfig `mapstructure:"mattermost"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	FrontendURL     string        `mapstructure:"frontend_url"` // where the direct OAuth callback lands after login
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Migrate  string         `mapstructure:"migrate"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// DSN returns the libpq style connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// SQLiteConfig is used for local development databases.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig contains Redis connection and pool settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig contains session cookie settings.
type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	AccessCookieName string        `mapstructure:"access_cookie_name"`
	CSRFCookieName   string        `mapstructure:"csrf_cookie_name"`
	SecureCookies    bool          `mapstructure:"secure_cookies"`
}

// OAuthConfig contains Wikimedia OAuth 1.0a consumer settings.
type OAuthConfig struct {
	ConsumerKey     string        `mapstructure:"consumer_key"`
	ConsumerSecret  string        `mapstructure:"consumer_secret"`
	BaseURL         string        `mapstructure:"base_url"` // e.g. https://meta.wikimedia.org
	CallbackMode    string        `mapstructure:"callback_mode"`
	CallbackURL     string        `mapstructure:"callback_url"`
	RequestTokenTTL time.Duration `mapstructure:"request_token_ttl"`
}

// Enabled reports whether consumer credentials are configured.
func (c *OAuthConfig) Enabled() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != ""
}

// MediaWikiConfig contains settings for the article metadata client.
type MediaWikiConfig struct {
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`

	// AllowedHosts lists the wiki hosts article links may point at.
	// "*.domain" matches any subdomain.
	AllowedHosts []string `mapstructure:"allowed_hosts"`
}

// MattermostConfig contains Mattermost webhook notification settings.
type MattermostConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Enabled    bool   `mapstructure:"enabled"`
}

// SchedulerConfig contains cron job settings.
type SchedulerConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Time            string `mapstructure:"time"`             // HH:MM for the jury reminder
	RefreshSchedule string `mapstructure:"refresh_schedule"` // cron expression for metadata refresh
	Timezone        string `mapstructure:"timezone"`
	SkipWeekends    bool   `mapstructure:"skip_weekends"`
}

// MetricsConfig contains metrics exporter settings.
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig contains Prometheus metrics exporter settings.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.frontend_url", "/")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.migrate", MigrateAuto)
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 20)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", 300)
	v.SetDefault("database.sqlite.path", "wikicontest.db")
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.pool_size", 10)

	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.access_cookie_name", "access_token_cookie")
	v.SetDefault("auth.csrf_cookie_name", "csrf_access_token")

	v.SetDefault("oauth.base_url", "https://meta.wikimedia.org")
	v.SetDefault("oauth.callback_mode", CallbackModeDirect)
	v.SetDefault("oauth.request_token_ttl", 10*time.Minute)

	v.SetDefault("mediawiki.user_agent", "WikiContest/1.0")
	v.SetDefault("mediawiki.timeout", 10*time.Second)
	v.SetDefault("mediawiki.max_retries", 2)
	v.SetDefault("mediawiki.allowed_hosts", []string{
		"*.wikipedia.org", "*.wiktionary.org", "*.wikibooks.org", "*.wikinews.org",
		"*.wikiquote.org", "*.wikisource.org", "*.wikiversity.org", "*.wikivoyage.org",
		"*.wikimedia.org", "*.wikidata.org", "*.mediawiki.org",
	})

	v.SetDefault("scheduler.time", "09:00")
	v.SetDefault("scheduler.timezone", "UTC")

	v.SetDefault("metrics.prometheus.port", 9090)
	v.SetDefault("metrics.prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/wikicontest/")
	}

	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")
	_ = v.BindEnv("server.frontend_url", "FRONTEND_URL")

	// Database configuration
	_ = v.BindEnv("database.driver", "DATABASE_DRIVER")
	_ = v.BindEnv("database.migrate", "DATABASE_MIGRATE")
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.sqlite.path", "SQLITE_PATH")

	// Redis configuration
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")

	// Auth and OAuth configuration
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET", "SECRET_KEY")
	_ = v.BindEnv("auth.secure_cookies", "SECURE_COOKIES")
	_ = v.BindEnv("oauth.consumer_key", "OAUTH_CONSUMER_KEY", "CONSUMER_KEY")
	_ = v.BindEnv("oauth.consumer_secret", "OAUTH_CONSUMER_SECRET", "CONSUMER_SECRET")
	_ = v.BindEnv("oauth.base_url", "OAUTH_BASE_URL")
	_ = v.BindEnv("oauth.callback_mode", "OAUTH_CALLBACK_MODE")
	_ = v.BindEnv("oauth.callback_url", "OAUTH_CALLBACK_URL")

	// Mattermost configuration
	_ = v.BindEnv("mattermost.webhook_url", "MATTERMOST_WEBHOOK_URL")
	_ = v.BindEnv("mattermost.channel", "MATTERMOST_CHANNEL")
	_ = v.BindEnv("mattermost.enabled", "MATTERMOST_ENABLED")

	// Scheduler configuration
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.time", "SCHEDULER_TIME")
	_ = v.BindEnv("scheduler.refresh_schedule", "SCHEDULER_REFRESH_SCHEDULE")
	_ = v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if c.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	case DriverSQLite:
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
		if c.Database.Migrate == MigrateSQL {
			return fmt.Errorf("database.migrate %q is only supported with postgres", MigrateSQL)
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	if c.Database.Migrate != MigrateAuto && c.Database.Migrate != MigrateSQL {
		return fmt.Errorf("unknown database.migrate %q", c.Database.Migrate)
	}
	if c.Database.Redis.Host == "" {
		return fmt.Errorf("database.redis.host is required")
	}

	switch c.OAuth.CallbackMode {
	case CallbackModeDirect:
		if c.OAuth.Enabled() && c.OAuth.CallbackURL == "" {
			return fmt.Errorf("oauth.callback_url is required for the direct callback mode")
		}
	case CallbackModeOOB:
	default:
		return fmt.Errorf("unknown oauth.callback_mode %q", c.OAuth.CallbackMode)
	}

	return nil
}

// GetLocation returns the scheduler timezone location.
func (c *SchedulerConfig) GetLocation() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
