package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/parnamyadak/partsbot/internal/domain"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	s, err := OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestFileStoreUserStatusRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.UserStatus(10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	st := domain.UserStatus{TelegramID: 10, Role: domain.RoleMechanic, State: domain.UserStatePending}
	if err := s.SetUserStatus(st); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.UserStatus(10)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Role != domain.RoleMechanic || got.State != domain.UserStatePending {
		t.Errorf("got %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be filled")
	}
}

func TestFileStorePendingUsers(t *testing.T) {
	s := openTestStore(t)
	seed := []domain.UserStatus{
		{TelegramID: 1, Role: domain.RoleMechanic, State: domain.UserStatePending},
		{TelegramID: 2, Role: domain.RoleCustomer, State: domain.UserStateApproved},
		{TelegramID: 3, Role: domain.RoleMechanic, State: domain.UserStateRejected},
	}
	for _, st := range seed {
		if err := s.SetUserStatus(st); err != nil {
			t.Fatalf("set %d: %v", st.TelegramID, err)
		}
	}
	pending, err := s.PendingUsers()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending count = %d, expected 2", len(pending))
	}
	if pending[0].TelegramID != 1 || pending[1].TelegramID != 3 {
		t.Errorf("pending ids = %d,%d", pending[0].TelegramID, pending[1].TelegramID)
	}
}

func TestFileStoreReceiptWaitLifecycle(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.ReceiptWait(5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SetReceiptWait(domain.ReceiptWait{TelegramID: 5, OrderID: 77}); err != nil {
		t.Fatalf("set: %v", err)
	}
	w, err := s.ReceiptWait(5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.OrderID != 77 {
		t.Errorf("order id = %d, expected 77", w.OrderID)
	}

	if err := s.ClearReceiptWait(5); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := s.ReceiptWait(5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wait cleared, got %v", err)
	}
	// clearing an absent wait is a no-op
	if err := s.ClearReceiptWait(5); err != nil {
		t.Fatalf("double clear: %v", err)
	}

	waits, err := s.ReceiptWaits()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(waits) != 0 {
		t.Errorf("expected no residue, got %d waits", len(waits))
	}
}

func TestFileStoreNotifiedLedgerIdempotent(t *testing.T) {
	s := openTestStore(t)

	seen, err := s.OrderNotified(100)
	if err != nil || seen {
		t.Fatalf("fresh order: seen=%v err=%v", seen, err)
	}
	if err := s.MarkOrderNotified(100); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := s.MarkOrderNotified(100); err != nil {
		t.Fatalf("remark: %v", err)
	}
	seen, err = s.OrderNotified(100)
	if err != nil || !seen {
		t.Fatalf("marked order: seen=%v err=%v", seen, err)
	}
}

func TestFileStoreNotifiedLedgerCap(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < notifiedCap+5; i++ {
		if err := s.MarkOrderNotified(int64(i)); err != nil {
			t.Fatalf("mark %d: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		seen, err := s.OrderNotified(int64(i))
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if seen {
			t.Errorf("order %d should have been evicted", i)
		}
	}
	seen, err := s.OrderNotified(int64(notifiedCap + 4))
	if err != nil || !seen {
		t.Fatalf("newest entry: seen=%v err=%v", seen, err)
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SetUserStatus(domain.UserStatus{TelegramID: 42, Role: domain.RoleCustomer, State: domain.UserStateApproved}); err != nil {
		t.Fatalf("set user: %v", err)
	}
	if err := s.SetReceiptWait(domain.ReceiptWait{TelegramID: 42, OrderID: 9}); err != nil {
		t.Fatalf("set wait: %v", err)
	}
	if err := s.MarkOrderNotified(9); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	u, err := s2.UserStatus(42)
	if err != nil || u.State != domain.UserStateApproved {
		t.Fatalf("user after reopen: %+v err=%v", u, err)
	}
	w, err := s2.ReceiptWait(42)
	if err != nil || w.OrderID != 9 {
		t.Fatalf("wait after reopen: %+v err=%v", w, err)
	}
	seen, err := s2.OrderNotified(9)
	if err != nil || !seen {
		t.Fatalf("ledger after reopen: seen=%v err=%v", seen, err)
	}
}

func TestFileStoreConcurrentMarks(t *testing.T) {
	s := openTestStore(t)
	done := make(chan error, 8)
	for g := 0; g < 8; g++ {
		go func(g int) {
			var err error
			for i := 0; i < 20; i++ {
				if e := s.MarkOrderNotified(int64(g*100 + i)); e != nil && err == nil {
					err = fmt.Errorf("mark: %w", e)
				}
			}
			done <- err
		}(g)
	}
	for g := 0; g < 8; g++ {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}
}
