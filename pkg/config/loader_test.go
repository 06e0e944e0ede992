package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "core.config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestInitialize_DefaultsOnly(t *testing.T) {
	cfg, err := Initialize("")
	require.NoError(t, err)

	assert.Equal(t, "Komodo", cfg.Title)
	assert.Equal(t, 9120, cfg.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 15, cfg.Monitoring.IntervalSeconds)
	assert.True(t, cfg.Monitoring.StatsStoringEnabled)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.MongoURI())
}

func TestInitialize_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
title = "Staging Core"
port = 9999

[database]
address = "mongo.internal:27017"
db_name = "komodo_staging"

[monitoring]
interval_seconds = 30
`)

	cfg, err := Initialize(path)
	require.NoError(t, err)

	assert.Equal(t, "Staging Core", cfg.Title)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "komodo_staging", cfg.Database.DBName)
	assert.Equal(t, 30, cfg.Monitoring.IntervalSeconds)
	// Untouched fields keep defaults.
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestInitialize_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
port = 9999
passkey = "from-file"
`)
	t.Setenv("KOMODO_PORT", "7777")
	t.Setenv("KOMODO_PASSKEY", "from-env")
	t.Setenv("KOMODO_MONITORING_INTERVAL", "45")

	cfg, err := Initialize(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Port)
	assert.Equal(t, "from-env", cfg.Passkey)
	assert.Equal(t, 45, cfg.Monitoring.IntervalSeconds)
}

func TestInitialize_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Initialize(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, 9120, cfg.Port)
}

func TestInitialize_TemplateExpansion(t *testing.T) {
	t.Setenv("TEST_CORE_PASSKEY", "super-secret")
	path := writeConfigFile(t, `
passkey = "{{.TEST_CORE_PASSKEY}}"
`)

	cfg, err := Initialize(path)
	require.NoError(t, err)
	assert.Equal(t, "super-secret", cfg.Passkey)
}

func TestInitialize_HostTrailingSlashTrimmed(t *testing.T) {
	path := writeConfigFile(t, `
host = "https://komodo.example.com/"
`)
	cfg, err := Initialize(path)
	require.NoError(t, err)
	assert.Equal(t, "https://komodo.example.com", cfg.Host)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = 0 },
			wantErr: "port",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name: "no database location",
			mutate: func(c *Config) {
				c.Database.URI = ""
				c.Database.Address = ""
			},
			wantErr: "database",
		},
		{
			name:    "empty db name",
			mutate:  func(c *Config) { c.Database.DBName = "" },
			wantErr: "db_name",
		},
		{
			name:    "monitoring interval too small",
			mutate:  func(c *Config) { c.Monitoring.IntervalSeconds = 1 },
			wantErr: "interval_seconds",
		},
		{
			name:    "host without scheme",
			mutate:  func(c *Config) { c.Host = "komodo.example.com" },
			wantErr: "host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMongoURI(t *testing.T) {
	tests := []struct {
		name string
		db   DatabaseConfig
		want string
	}{
		{
			name: "explicit uri wins",
			db:   DatabaseConfig{URI: "mongodb+srv://u:p@cluster0", Address: "ignored:27017"},
			want: "mongodb+srv://u:p@cluster0",
		},
		{
			name: "address with credentials",
			db:   DatabaseConfig{Address: "db:27017", Username: "core", Password: "pw"},
			want: "mongodb://core:pw@db:27017",
		},
		{
			name: "bare address",
			db:   DatabaseConfig{Address: "db:27017"},
			want: "mongodb://db:27017",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.db.MongoURI())
		})
	}
}
