package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/parnamyadak/partsbot/internal/config"
	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/logger"
)

// sqlStore is the Postgres backend.
type sqlStore struct {
	db *sqlx.DB
}

// OpenPostgres connects to Postgres, runs migrations and returns the store.
func OpenPostgres(cfg config.DatabaseConfig) (Store, error) {
	if err := runMigrations(cfg); err != nil {
		return nil, err
	}
	db, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	return &sqlStore{db: db}, nil
}

func dsn(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%d dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}

func migrateDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}

func connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn(cfg))
	took := time.Since(start)
	if err != nil {
		logger.Store.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("host", cfg.Host),
			slog.String("db", cfg.Name),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	logger.Store.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("host", cfg.Host),
		slog.String("db", cfg.Name),
		slog.Int("pool_open", cfg.MaxOpenConns),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return db, nil
}

// waitForPostgres retries the connection until the database answers pings
// or the timeout passes.
func waitForPostgres(dsn string, timeout time.Duration) error {
	start := time.Now()
	var lastErr error
	for {
		db, err := sql.Open("postgres", dsn)
		if err == nil {
			if err = db.Ping(); err == nil {
				_ = db.Close()
				return nil
			}
			_ = db.Close()
		}
		lastErr = err
		if time.Since(start) > timeout {
			return fmt.Errorf("timeout reached waiting for database: %w", lastErr)
		}
		time.Sleep(2 * time.Second)
	}
}

func runMigrations(cfg config.DatabaseConfig) error {
	url := migrateDSN(cfg)
	if err := waitForPostgres(dsn(cfg), 30*time.Second); err != nil {
		logger.Store.Error("db not ready",
			slog.String("event", "db.migrate"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("database not ready: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	sourceURL := "file://" + filepath.Join(cwd, "migrations")

	m, err := migrate.New(sourceURL, url)
	if err != nil {
		logger.Store.Error("migrations init failed",
			slog.String("event", "db.migrate"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	fromVer, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Store.Error("migration failed",
			slog.String("event", "db.migrate"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	logger.Store.Info("migrations summary",
		slog.String("event", "db.migrate"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return nil
}

func (s *sqlStore) UserStatus(telegramID int64) (*domain.UserStatus, error) {
	var u domain.UserStatus
	err := s.db.Get(&u,
		`SELECT telegram_id, role, state, updated_at FROM user_statuses WHERE telegram_id = $1`,
		telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user status: %w", err)
	}
	return &u, nil
}

func (s *sqlStore) SetUserStatus(status domain.UserStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO user_statuses (telegram_id, role, state, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (telegram_id)
		 DO UPDATE SET role = EXCLUDED.role, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		status.TelegramID, status.Role, status.State, status.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert user status: %w", err)
	}
	return nil
}

func (s *sqlStore) PendingUsers() ([]domain.UserStatus, error) {
	var out []domain.UserStatus
	err := s.db.Select(&out,
		`SELECT telegram_id, role, state, updated_at FROM user_statuses
		 WHERE state <> $1 ORDER BY telegram_id`,
		domain.UserStateApproved)
	if err != nil {
		return nil, fmt.Errorf("select pending users: %w", err)
	}
	return out, nil
}

func (s *sqlStore) ReceiptWait(telegramID int64) (*domain.ReceiptWait, error) {
	var w domain.ReceiptWait
	err := s.db.Get(&w,
		`SELECT telegram_id, order_id, armed_at FROM receipt_waits WHERE telegram_id = $1`,
		telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select receipt wait: %w", err)
	}
	return &w, nil
}

func (s *sqlStore) SetReceiptWait(wait domain.ReceiptWait) error {
	if wait.ArmedAt.IsZero() {
		wait.ArmedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO receipt_waits (telegram_id, order_id, armed_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (telegram_id)
		 DO UPDATE SET order_id = EXCLUDED.order_id, armed_at = EXCLUDED.armed_at`,
		wait.TelegramID, wait.OrderID, wait.ArmedAt)
	if err != nil {
		return fmt.Errorf("upsert receipt wait: %w", err)
	}
	return nil
}

func (s *sqlStore) ClearReceiptWait(telegramID int64) error {
	if _, err := s.db.Exec(`DELETE FROM receipt_waits WHERE telegram_id = $1`, telegramID); err != nil {
		return fmt.Errorf("delete receipt wait: %w", err)
	}
	return nil
}

func (s *sqlStore) ReceiptWaits() ([]domain.ReceiptWait, error) {
	var out []domain.ReceiptWait
	err := s.db.Select(&out,
		`SELECT telegram_id, order_id, armed_at FROM receipt_waits ORDER BY telegram_id`)
	if err != nil {
		return nil, fmt.Errorf("select receipt waits: %w", err)
	}
	return out, nil
}

func (s *sqlStore) OrderNotified(orderID int64) (bool, error) {
	var n int
	err := s.db.Get(&n, `SELECT COUNT(1) FROM notified_orders WHERE order_id = $1`, orderID)
	if err != nil {
		return false, fmt.Errorf("select notified order: %w", err)
	}
	return n > 0, nil
}

func (s *sqlStore) MarkOrderNotified(orderID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO notified_orders (order_id, notified_at)
		 VALUES ($1, $2) ON CONFLICT (order_id) DO NOTHING`,
		orderID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert notified order: %w", err)
	}
	_, err = s.db.Exec(
		`DELETE FROM notified_orders WHERE order_id IN (
		   SELECT order_id FROM notified_orders
		   ORDER BY notified_at DESC OFFSET $1)`,
		notifiedCap)
	if err != nil {
		return fmt.Errorf("trim notified orders: %w", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
