package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[server]
port = 8080
frontend_url = "https://contests.example.org/"

[database]
driver = "postgres"

[database.postgres]
host = "db"
database = "wikicontest"
user = "wiki"

[database.redis]
host = "redis"

[auth]
jwt_secret = "s3cret"

[oauth]
consumer_key = "key"
consumer_secret = "secret"
callback_mode = "oob"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_TOMLWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://contests.example.org/", cfg.Server.FrontendURL)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, MigrateAuto, cfg.Database.Migrate)
	assert.Equal(t, "redis:6379", cfg.Database.Redis.Addr())
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "access_token_cookie", cfg.Auth.AccessCookieName)
	assert.Equal(t, "csrf_access_token", cfg.Auth.CSRFCookieName)
	assert.Equal(t, CallbackModeOOB, cfg.OAuth.CallbackMode)
	assert.True(t, cfg.OAuth.Enabled())
	assert.Equal(t, 10*time.Minute, cfg.OAuth.RequestTokenTTL)
	assert.Contains(t, cfg.MediaWiki.AllowedHosts, "*.wikipedia.org")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("POSTGRES_HOST", "override-db")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "override-db", cfg.Database.Postgres.Host)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:   DriverPostgres,
			Migrate:  MigrateAuto,
			Postgres: PostgresConfig{Host: "db", Database: "wikicontest", User: "wiki"},
			Redis:    RedisConfig{Host: "redis", Port: 6379},
		},
		Auth:  AuthConfig{JWTSecret: "s3cret"},
		OAuth: OAuthConfig{CallbackMode: CallbackModeDirect},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: "auth.jwt_secret is required",
		},
		{
			name:    "missing postgres host",
			mutate:  func(c *Config) { c.Database.Postgres.Host = "" },
			wantErr: "database.postgres.host is required",
		},
		{
			name:   "sqlite needs no postgres",
			mutate: func(c *Config) { c.Database.Driver = DriverSQLite; c.Database.Postgres = PostgresConfig{}; c.Database.SQLite.Path = "x.db" },
		},
		{
			name: "sqlite rejects sql migrations",
			mutate: func(c *Config) {
				c.Database.Driver = DriverSQLite
				c.Database.SQLite.Path = "x.db"
				c.Database.Migrate = MigrateSQL
			},
			wantErr: "only supported with postgres",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "unknown database.driver",
		},
		{
			name:    "missing redis",
			mutate:  func(c *Config) { c.Database.Redis.Host = "" },
			wantErr: "database.redis.host is required",
		},
		{
			name: "direct callback needs url when oauth is on",
			mutate: func(c *Config) {
				c.OAuth.ConsumerKey = "k"
				c.OAuth.ConsumerSecret = "s"
			},
			wantErr: "oauth.callback_url is required",
		},
		{
			name:    "unknown callback mode",
			mutate:  func(c *Config) { c.OAuth.CallbackMode = "popup" },
			wantErr: "unknown oauth.callback_mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
