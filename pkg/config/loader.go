package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/pelletier/go-toml/v2"
)

// Initialize loads, resolves, and validates the configuration.
//
// Steps performed:
//  1. Start from built-in defaults
//  2. Merge the TOML file at path over them (when the file exists)
//  3. Apply KOMODO_* environment overrides
//  4. Normalize derived fields
//  5. Validate
func Initialize(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	slog.Info("Configuration initialized",
		"config_path", path,
		"port", cfg.Port,
		"db_name", cfg.Database.DBName,
		"monitoring_interval_s", cfg.Monitoring.IntervalSeconds)

	return cfg, nil
}

func load(path string) (*Config, error) {
	cfg := DefaultConfig()

	fileCfg, err := loadTOML(path)
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		// Non-zero file values override defaults.
		if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config file: %w", err)
		}
	}

	applyEnv(cfg)

	cfg.Host = strings.TrimSuffix(cfg.Host, "/")
	cfg.WebhookBaseURL = strings.TrimSuffix(cfg.WebhookBaseURL, "/")
	if cfg.WebhookBaseURL == "" {
		cfg.WebhookBaseURL = cfg.Host
	}

	return cfg, nil
}

// loadTOML reads and parses the config file. A missing file is not an
// error: env-only deployments are supported.
func loadTOML(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Config file not found, continuing with defaults and environment", "path", path)
			return nil, nil
		}
		return nil, NewLoadError(path, err)
	}

	// Expand {{.VAR}} environment references before parsing, so secrets
	// can stay out of the file.
	data = ExpandEnv(data)

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidTOML, err))
	}
	return &cfg, nil
}

// applyEnv overrides config fields from KOMODO_* environment variables.
// Environment wins over both defaults and the file.
func applyEnv(cfg *Config) {
	setString(&cfg.Title, "KOMODO_TITLE")
	setString(&cfg.Host, "KOMODO_HOST")
	setInt(&cfg.Port, "KOMODO_PORT")
	setString(&cfg.BindIP, "KOMODO_BIND_IP")
	setString(&cfg.Passkey, "KOMODO_PASSKEY")
	setString(&cfg.WebhookSecret, "KOMODO_GITHUB_WEBHOOK_SECRET")
	setString(&cfg.WebhookBaseURL, "KOMODO_GITHUB_WEBHOOK_BASE_URL")
	setString(&cfg.JwtSecret, "KOMODO_JWT_SECRET")
	setBool(&cfg.TransparentMode, "KOMODO_TRANSPARENT_MODE")
	setBool(&cfg.LocalAuth, "KOMODO_LOCAL_AUTH")
	setString(&cfg.InitAdminUsername, "KOMODO_INIT_ADMIN_USERNAME")
	setString(&cfg.InitAdminPassword, "KOMODO_INIT_ADMIN_PASSWORD")

	setString(&cfg.Logging.Level, "KOMODO_LOGGING_LEVEL")
	setString(&cfg.Logging.Format, "KOMODO_LOGGING_FORMAT")

	setString(&cfg.Database.URI, "KOMODO_MONGO_URI")
	setString(&cfg.Database.Address, "KOMODO_MONGO_ADDRESS")
	setString(&cfg.Database.Username, "KOMODO_MONGO_USERNAME")
	setString(&cfg.Database.Password, "KOMODO_MONGO_PASSWORD")
	setString(&cfg.Database.DBName, "KOMODO_MONGO_DB_NAME")

	setInt(&cfg.Monitoring.IntervalSeconds, "KOMODO_MONITORING_INTERVAL")
	setBool(&cfg.Monitoring.StatsStoringEnabled, "KOMODO_STATS_STORING_ENABLED")

	setInt(&cfg.Retention.StatsDays, "KOMODO_KEEP_STATS_FOR_DAYS")
	setInt(&cfg.Retention.AlertsDays, "KOMODO_KEEP_ALERTS_FOR_DAYS")
	setInt(&cfg.Retention.UpdatesDays, "KOMODO_KEEP_UPDATES_FOR_DAYS")

	setString(&cfg.AWS.AccessKeyID, "KOMODO_AWS_ACCESS_KEY_ID")
	setString(&cfg.AWS.SecretAccessKey, "KOMODO_AWS_SECRET_ACCESS_KEY")
	setString(&cfg.Hetzner.Token, "KOMODO_HETZNER_TOKEN")

	setString(&cfg.Actions.DenoBinPath, "KOMODO_ACTIONS_DENO_BIN_PATH")
	setString(&cfg.Actions.Directory, "KOMODO_ACTIONS_DIRECTORY")
	setString(&cfg.SyncDirectory, "KOMODO_SYNC_DIRECTORY")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Ignoring non-integer environment override", "key", key, "value", v)
		return
	}
	*dst = n
}

func setBool(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("Ignoring non-boolean environment override", "key", key, "value", v)
		return
	}
	*dst = b
}

func validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return NewValidationError("port", fmt.Sprintf("must be 1-65535, got %d", cfg.Port))
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return NewValidationError("logging.level", fmt.Sprintf("unknown level %q", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return NewValidationError("logging.format", fmt.Sprintf("must be json or text, got %q", cfg.Logging.Format))
	}
	if cfg.Database.URI == "" && cfg.Database.Address == "" {
		return NewValidationError("database", "either uri or address is required")
	}
	if cfg.Database.DBName == "" {
		return NewValidationError("database.db_name", "required")
	}
	if cfg.Monitoring.IntervalSeconds < 5 {
		return NewValidationError("monitoring.interval_seconds", "must be at least 5")
	}
	if cfg.Actions.TimeoutSeconds < 1 {
		return NewValidationError("actions.timeout_seconds", "must be positive")
	}
	if cfg.Host != "" && !strings.HasPrefix(cfg.Host, "http") {
		return NewValidationError("host", "must be a full url including scheme")
	}
	return nil
}

// MongoURI composes the connection string, preferring an explicit URI.
func (d DatabaseConfig) MongoURI() string {
	if d.URI != "" {
		return d.URI
	}
	if d.Username != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s", d.Username, d.Password, d.Address)
	}
	return fmt.Sprintf("mongodb://%s", d.Address)
}
