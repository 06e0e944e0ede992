// Package config loads and validates the core configuration from a TOML
// file, with KOMODO_* environment variables taking precedence over file
// values and built-in defaults filling the rest.
package config

import "time"

// Config is the fully resolved core configuration.
type Config struct {
	// Title identifies this core instance in alerts and the UI.
	Title string `toml:"title"`
	// Host is the externally reachable base URL of the core, used to
	// render webhook urls. No trailing slash.
	Host string `toml:"host"`
	// Port the HTTP server binds.
	Port int `toml:"port"`
	// BindIP restricts the listen address; empty binds all interfaces.
	BindIP string `toml:"bind_ip"`

	// Passkey authenticates the core to periphery agents.
	Passkey string `toml:"passkey"`
	// WebhookSecret is the HMAC key for incoming git webhooks.
	WebhookSecret string `toml:"webhook_secret"`
	// WebhookBaseURL overrides Host when rendering webhook urls, for
	// deployments where git providers reach the core through a different
	// ingress. Empty falls back to Host.
	WebhookBaseURL string `toml:"webhook_base_url"`
	// JwtSecret signs ephemeral credentials handed to action runs.
	JwtSecret string `toml:"jwt_secret"`

	// TransparentMode raises every enabled user's base permission on every
	// resource to Read.
	TransparentMode bool `toml:"transparent_mode"`
	// LocalAuth enables username/password login against the users
	// collection; disabling it restricts authentication to api keys.
	LocalAuth bool `toml:"local_auth"`

	// InitAdminUsername/InitAdminPassword bootstrap the first admin user
	// when the users collection is empty.
	InitAdminUsername string `toml:"init_admin_username"`
	InitAdminPassword string `toml:"init_admin_password"`

	Logging    LoggingConfig    `toml:"logging"`
	Database   DatabaseConfig   `toml:"database"`
	Monitoring MonitoringConfig `toml:"monitoring"`
	Retention  RetentionConfig  `toml:"retention"`
	AWS        AwsConfig        `toml:"aws"`
	Hetzner    HetznerConfig    `toml:"hetzner"`
	Actions    ActionsConfig    `toml:"actions"`

	// SyncDirectory is the root under which sync resource_path entries
	// resolve. Paths escaping it are rejected.
	SyncDirectory string `toml:"sync_directory"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Format is json or text.
	Format string `toml:"format"`
}

// DatabaseConfig locates the mongo deployment. URI wins when set; otherwise
// the address/credential fields compose one.
type DatabaseConfig struct {
	URI      string `toml:"uri"`
	Address  string `toml:"address"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	DBName   string `toml:"db_name"`
}

// MonitoringConfig tunes the server poll loop.
type MonitoringConfig struct {
	// IntervalSeconds between monitoring sweeps.
	IntervalSeconds int `toml:"interval_seconds"`
	// StatsStoringEnabled persists one stats sample per server per minute.
	StatsStoringEnabled bool `toml:"stats_storing_enabled"`
}

// Interval returns the sweep interval as a duration.
func (m MonitoringConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// RetentionConfig bounds how long history collections are kept. Zero
// disables pruning for that collection.
type RetentionConfig struct {
	StatsDays   int `toml:"stats_days"`
	AlertsDays  int `toml:"alerts_days"`
	UpdatesDays int `toml:"updates_days"`
}

// AwsConfig holds the credential used to provision EC2 builders and servers.
type AwsConfig struct {
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// Enabled reports whether an AWS credential is configured.
func (a AwsConfig) Enabled() bool {
	return a.AccessKeyID != "" && a.SecretAccessKey != ""
}

// HetznerConfig holds the Hetzner Cloud API token.
type HetznerConfig struct {
	Token string `toml:"token"`
}

// Enabled reports whether a Hetzner credential is configured.
func (h HetznerConfig) Enabled() bool {
	return h.Token != ""
}

// ActionsConfig controls the deno action runner.
type ActionsConfig struct {
	// DenoBinPath is the deno executable; looked up on PATH when bare.
	DenoBinPath string `toml:"deno_bin_path"`
	// Directory holds the generated run files and the deno cache.
	Directory string `toml:"directory"`
	// TimeoutSeconds bounds one action run.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Timeout returns the action run bound as a duration.
func (a ActionsConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// DefaultConfig returns the built-in defaults, applied before the config
// file and environment are merged over them.
func DefaultConfig() *Config {
	return &Config{
		Title: "Komodo",
		Port:  9120,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Address: "localhost:27017",
			DBName:  "komodo",
		},
		Monitoring: MonitoringConfig{
			IntervalSeconds:     15,
			StatsStoringEnabled: true,
		},
		Retention: RetentionConfig{
			StatsDays: 14,
		},
		Actions: ActionsConfig{
			DenoBinPath:    "deno",
			Directory:      "/action-cache",
			TimeoutSeconds: 600,
		},
		SyncDirectory: "/syncs",
	}
}
