package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// StorageFile keeps bot state in JSON files under storage.data_dir.
	StorageFile = "file"
	// StoragePostgres keeps bot state in Postgres via the database settings.
	StoragePostgres = "postgres"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings for Telegram update delivery.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// NotifyConfig specifies the push-mode notify HTTP server. It only runs in
// webhook mode.
type NotifyConfig struct {
	Listen string `yaml:"listen" envconfig:"NOTIFY_LISTEN"`
	Port   int    `yaml:"port" envconfig:"NOTIFY_PORT"`
}

// PanelConfig points the bot at the marketplace panel API.
type PanelConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"PANEL_BASE_URL"`
	// Timeouts in seconds; zero values take defaults in Normalize.
	StatusTimeoutSeconds  int `yaml:"status_timeout_seconds" envconfig:"PANEL_STATUS_TIMEOUT_SECONDS"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" envconfig:"PANEL_REQUEST_TIMEOUT_SECONDS"`
	UploadTimeoutSeconds  int `yaml:"upload_timeout_seconds" envconfig:"PANEL_UPLOAD_TIMEOUT_SECONDS"`
}

// PollingConfig tunes the reconciliation poller and per-order watchers.
type PollingConfig struct {
	IntervalSeconds        int `yaml:"interval_seconds" envconfig:"POLL_INTERVAL_SECONDS"`
	HealthIntervalSeconds  int `yaml:"health_interval_seconds" envconfig:"POLL_HEALTH_INTERVAL_SECONDS"`
	Retries                int `yaml:"retries" envconfig:"POLL_RETRIES"`
	RetryDelaySeconds      int `yaml:"retry_delay_seconds" envconfig:"POLL_RETRY_DELAY_SECONDS"`
	WatcherIntervalSeconds int `yaml:"watcher_interval_seconds" envconfig:"POLL_WATCHER_INTERVAL_SECONDS"`
	WatcherMaxHours        int `yaml:"watcher_max_hours" envconfig:"POLL_WATCHER_MAX_HOURS"`
}

// StorageConfig selects and locates the state store backend.
type StorageConfig struct {
	Driver  string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	DataDir string `yaml:"data_dir" envconfig:"STORAGE_DATA_DIR"`
}

// DatabaseConfig holds Postgres settings for the sql store backend.
type DatabaseConfig struct {
	Host     string `yaml:"host" envconfig:"DB_HOST"`
	Port     int    `yaml:"port" envconfig:"DB_PORT"`
	User     string `yaml:"user" envconfig:"DB_USER"`
	Password string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name     string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" envconfig:"DB_SSLMODE"`

	MaxOpenConns    int `yaml:"max_open_conns" envconfig:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int `yaml:"max_idle_conns" envconfig:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime_seconds" envconfig:"DB_CONN_MAX_LIFETIME_SECONDS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	File        string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// RateLimitConfig holds settings for per-user rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates all bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Notify    NotifyConfig    `yaml:"notify"`
	Panel     PanelConfig     `yaml:"panel"`
	Polling   PollingConfig   `yaml:"polling"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if strings.TrimSpace(cfg.Panel.BaseURL) == "" {
		return fmt.Errorf("panel.base_url is required")
	}
	cfg.Panel.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Panel.BaseURL), "/")

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Notify.Listen) == "" {
			cfg.Notify.Listen = "0.0.0.0"
		}
		if cfg.Notify.Port <= 0 {
			cfg.Notify.Port = 5000
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.Panel.StatusTimeoutSeconds <= 0 {
		cfg.Panel.StatusTimeoutSeconds = 5
	}
	if cfg.Panel.RequestTimeoutSeconds <= 0 {
		cfg.Panel.RequestTimeoutSeconds = 10
	}
	if cfg.Panel.UploadTimeoutSeconds <= 0 {
		cfg.Panel.UploadTimeoutSeconds = 30
	}

	if cfg.Polling.IntervalSeconds <= 0 {
		if rm == RunModeLongpoll {
			cfg.Polling.IntervalSeconds = 60
		} else {
			cfg.Polling.IntervalSeconds = 300
		}
	}
	if cfg.Polling.HealthIntervalSeconds <= 0 {
		cfg.Polling.HealthIntervalSeconds = 60
	}
	if cfg.Polling.Retries < 0 {
		return fmt.Errorf("polling.retries must be >= 0")
	}
	if cfg.Polling.Retries == 0 {
		cfg.Polling.Retries = 2
	}
	if cfg.Polling.RetryDelaySeconds <= 0 {
		cfg.Polling.RetryDelaySeconds = 10
	}
	if cfg.Polling.WatcherIntervalSeconds <= 0 {
		cfg.Polling.WatcherIntervalSeconds = 30
	}
	if cfg.Polling.WatcherMaxHours <= 0 {
		cfg.Polling.WatcherMaxHours = 24
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" {
		driver = StorageFile
	}
	switch driver {
	case StorageFile:
		if strings.TrimSpace(cfg.Storage.DataDir) == "" {
			cfg.Storage.DataDir = "data"
		}
	case StoragePostgres:
		if strings.TrimSpace(cfg.Database.Host) == "" {
			return fmt.Errorf("database.host is required when storage.driver is 'postgres'")
		}
		if strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.name is required when storage.driver is 'postgres'")
		}
		if cfg.Database.Port <= 0 {
			cfg.Database.Port = 5432
		}
		if strings.TrimSpace(cfg.Database.SSLMode) == "" {
			cfg.Database.SSLMode = "disable"
		}
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: file, postgres", cfg.Storage.Driver)
	}
	cfg.Storage.Driver = driver

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

// PollInterval returns the reconciliation cycle period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

// HealthInterval returns how long a connectivity probe result stays cached.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Polling.HealthIntervalSeconds) * time.Second
}

// RetryDelay returns the pause between poller retry attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Polling.RetryDelaySeconds) * time.Second
}

// WatcherInterval returns the per-order watcher probe period.
func (c *Config) WatcherInterval() time.Duration {
	return time.Duration(c.Polling.WatcherIntervalSeconds) * time.Second
}

// WatcherMaxLifetime returns how long a single order watcher may live.
func (c *Config) WatcherMaxLifetime() time.Duration {
	return time.Duration(c.Polling.WatcherMaxHours) * time.Hour
}
