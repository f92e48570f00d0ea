package config

import (
	"strings"
	"testing"
)

func baseConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Panel:    PanelConfig{BaseURL: "http://panel.local/"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := baseConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Errorf("run_mode = %q, expected longpoll default", cfg.Telegram.RunMode)
	}
	if cfg.Panel.BaseURL != "http://panel.local" {
		t.Errorf("base_url = %q, expected trailing slash trimmed", cfg.Panel.BaseURL)
	}
	if cfg.Polling.IntervalSeconds != 60 {
		t.Errorf("poll interval = %d, expected 60 in longpoll mode", cfg.Polling.IntervalSeconds)
	}
	if cfg.Polling.Retries != 2 || cfg.Polling.RetryDelaySeconds != 10 {
		t.Errorf("retries/delay = %d/%d, expected 2/10", cfg.Polling.Retries, cfg.Polling.RetryDelaySeconds)
	}
	if cfg.Polling.WatcherIntervalSeconds != 30 || cfg.Polling.WatcherMaxHours != 24 {
		t.Errorf("watcher interval/max = %d/%d, expected 30/24",
			cfg.Polling.WatcherIntervalSeconds, cfg.Polling.WatcherMaxHours)
	}
	if cfg.Storage.Driver != StorageFile || cfg.Storage.DataDir != "data" {
		t.Errorf("storage = %q/%q, expected file/data", cfg.Storage.Driver, cfg.Storage.DataDir)
	}
	if cfg.Panel.StatusTimeoutSeconds != 5 || cfg.Panel.RequestTimeoutSeconds != 10 || cfg.Panel.UploadTimeoutSeconds != 30 {
		t.Errorf("panel timeouts = %d/%d/%d, expected 5/10/30",
			cfg.Panel.StatusTimeoutSeconds, cfg.Panel.RequestTimeoutSeconds, cfg.Panel.UploadTimeoutSeconds)
	}
}

func TestNormalizePollingAlias(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = "Polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Errorf("run_mode = %q, expected alias to map to longpoll", cfg.Telegram.RunMode)
	}
}

func TestNormalizeWebhookRequirements(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	err := Normalize(cfg)
	if err == nil || !strings.Contains(err.Error(), "webhook.url") {
		t.Fatalf("expected webhook.url error, got %v", err)
	}

	cfg = baseConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	cfg.Webhook = WebhookConfig{URL: "https://bot.example.com/hook", Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Polling.IntervalSeconds != 300 {
		t.Errorf("poll interval = %d, expected 300 in webhook mode", cfg.Polling.IntervalSeconds)
	}
	if cfg.Notify.Listen != "0.0.0.0" || cfg.Notify.Port != 5000 {
		t.Errorf("notify = %q:%d, expected 0.0.0.0:5000 defaults", cfg.Notify.Listen, cfg.Notify.Port)
	}
}

func TestNormalizeRejectsUnknownRunMode(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = "carrier-pigeon"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown run_mode")
	}
}

func TestNormalizeRequiresToken(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.Token = ""
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestNormalizeRequiresPanelURL(t *testing.T) {
	cfg := baseConfig()
	cfg.Panel.BaseURL = "  "
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for missing panel.base_url")
	}
}

func TestNormalizePostgresDriver(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Driver = "postgres"
	err := Normalize(cfg)
	if err == nil || !strings.Contains(err.Error(), "database.host") {
		t.Fatalf("expected database.host error, got %v", err)
	}

	cfg = baseConfig()
	cfg.Storage.Driver = "Postgres"
	cfg.Database = DatabaseConfig{Host: "db", Name: "partsbot"}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Storage.Driver != StoragePostgres {
		t.Errorf("driver = %q, expected postgres", cfg.Storage.Driver)
	}
	if cfg.Database.Port != 5432 || cfg.Database.SSLMode != "disable" {
		t.Errorf("db defaults = %d/%q, expected 5432/disable", cfg.Database.Port, cfg.Database.SSLMode)
	}
}

func TestNormalizeRateLimitExcludes(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback ", "message"}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != UpdateCallback {
		t.Errorf("exclude[0] = %q, expected callback", cfg.RateLimit.ExcludeUpdates[0])
	}

	cfg = baseConfig()
	cfg.RateLimit.ExcludeUpdates = []string{"webhook"}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unsupported exclude value")
	}
}
