package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/logger"
)

const (
	userStatusFile     = "user_status.json"
	receiptStateFile   = "receipt_state.json"
	notifiedOrdersFile = "notified_orders.json"
)

// fileStore keeps all state in JSON files under a data directory. A single
// mutex serializes every mutation, and each mutation rewrites the affected
// file wholesale through a temp-file rename.
type fileStore struct {
	dir string

	mu       sync.Mutex
	users    map[int64]domain.UserStatus
	waits    map[int64]domain.ReceiptWait
	notified []int64
}

// OpenFile loads or creates a JSON file store rooted at dir.
func OpenFile(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &fileStore{
		dir:   dir,
		users: make(map[int64]domain.UserStatus),
		waits: make(map[int64]domain.ReceiptWait),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	logger.Info(logger.Background(), "store", "store.open",
		slog.String("dir", dir),
		slog.Int("users", len(s.users)),
		slog.Int("receipt_waits", len(s.waits)),
		slog.Int("notified", len(s.notified)),
	)
	return s, nil
}

func (s *fileStore) load() error {
	var users []domain.UserStatus
	if err := s.readFile(userStatusFile, &users); err != nil {
		return err
	}
	for _, u := range users {
		s.users[u.TelegramID] = u
	}

	var waits []domain.ReceiptWait
	if err := s.readFile(receiptStateFile, &waits); err != nil {
		return err
	}
	for _, w := range waits {
		s.waits[w.TelegramID] = w
	}

	if err := s.readFile(notifiedOrdersFile, &s.notified); err != nil {
		return err
	}
	return nil
}

func (s *fileStore) readFile(name string, dst any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (s *fileStore) writeFile(name string, src any) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (s *fileStore) UserStatus(telegramID int64) (*domain.UserStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[telegramID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *fileStore) SetUserStatus(status domain.UserStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	s.users[status.TelegramID] = status
	return s.writeFile(userStatusFile, s.userList())
}

func (s *fileStore) PendingUsers() ([]domain.UserStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserStatus
	for _, u := range s.users {
		if !u.State.Terminal() {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TelegramID < out[j].TelegramID })
	return out, nil
}

func (s *fileStore) userList() []domain.UserStatus {
	out := make([]domain.UserStatus, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TelegramID < out[j].TelegramID })
	return out
}

func (s *fileStore) ReceiptWait(telegramID int64) (*domain.ReceiptWait, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.waits[telegramID]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (s *fileStore) SetReceiptWait(wait domain.ReceiptWait) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wait.ArmedAt.IsZero() {
		wait.ArmedAt = time.Now().UTC()
	}
	s.waits[wait.TelegramID] = wait
	return s.writeFile(receiptStateFile, s.waitList())
}

func (s *fileStore) ClearReceiptWait(telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.waits[telegramID]; !ok {
		return nil
	}
	delete(s.waits, telegramID)
	return s.writeFile(receiptStateFile, s.waitList())
}

func (s *fileStore) ReceiptWaits() ([]domain.ReceiptWait, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitList(), nil
}

func (s *fileStore) waitList() []domain.ReceiptWait {
	out := make([]domain.ReceiptWait, 0, len(s.waits))
	for _, w := range s.waits {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TelegramID < out[j].TelegramID })
	return out
}

func (s *fileStore) OrderNotified(orderID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.notified {
		if id == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fileStore) MarkOrderNotified(orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.notified {
		if id == orderID {
			return nil
		}
	}
	s.notified = append(s.notified, orderID)
	if overflow := len(s.notified) - notifiedCap; overflow > 0 {
		s.notified = s.notified[overflow:]
	}
	return s.writeFile(notifiedOrdersFile, s.notified)
}

func (s *fileStore) Close() error {
	return nil
}
