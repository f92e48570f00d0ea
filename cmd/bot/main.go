package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/bot"
	"github.com/parnamyadak/partsbot/internal/buildinfo"
	"github.com/parnamyadak/partsbot/internal/config"
	"github.com/parnamyadak/partsbot/internal/logger"
	"github.com/parnamyadak/partsbot/internal/notify"
	"github.com/parnamyadak/partsbot/internal/panel"
	"github.com/parnamyadak/partsbot/internal/poller"
	"github.com/parnamyadak/partsbot/internal/store"
	"github.com/parnamyadak/partsbot/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		DebugSample: cfg.Logging.DebugSample,
		Dir:         cfg.Logging.Dir,
		File:        cfg.Logging.File,
		Profile:     cfg.Logging.Profile,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	logger.Info(logger.Background(), "app", "app.start",
		slog.String("version", buildinfo.Version),
		slog.String("commit", buildinfo.Commit),
		slog.String("mode", cfg.Telegram.RunMode),
		slog.String("storage", cfg.Storage.Driver),
	)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	client := panel.New(cfg.Panel.BaseURL, panel.Timeouts{
		Status:  time.Duration(cfg.Panel.StatusTimeoutSeconds) * time.Second,
		Request: time.Duration(cfg.Panel.RequestTimeoutSeconds) * time.Second,
		Upload:  time.Duration(cfg.Panel.UploadTimeoutSeconds) * time.Second,
	})

	healthCtx, healthCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = client.Health(healthCtx)
	healthCancel()
	if err != nil {
		return fmt.Errorf("panel connectivity check: %w", err)
	}

	b, err := bot.New(cfg, client, st)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup

	if cfg.Telegram.RunMode == config.RunModeWebhook {
		notifier := notify.New(b, client, st, nil)
		b.SetNotifier(notifier)

		srv := webhook.New(notifier, st, cfg.Notify.Listen, cfg.Notify.Port)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.Printf("notify server: %v", err)
				cancel()
			}
		}()
	} else {
		p := poller.New(client, st, nil, poller.Options{
			Interval:        cfg.PollInterval(),
			HealthInterval:  cfg.HealthInterval(),
			Retries:         cfg.Polling.Retries,
			RetryDelay:      cfg.RetryDelay(),
			WatcherInterval: cfg.WatcherInterval(),
			WatcherMax:      cfg.WatcherMaxLifetime(),
		})
		notifier := notify.New(b, client, st, p)
		p.SetNotifier(notifier)
		b.SetNotifier(notifier)
		b.SetTracker(p)

		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Run(ctx)
		}()
	}

	b.Run(ctx)
	cancel()
	wg.Wait()
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		return store.OpenPostgres(cfg.Database)
	default:
		return store.OpenFile(cfg.Storage.DataDir)
	}
}
