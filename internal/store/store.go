package store

import (
	"errors"

	"github.com/parnamyadak/partsbot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// notifiedCap bounds the notified-order ledger; oldest entries are evicted.
const notifiedCap = 1000

// Store persists bot state that must survive restarts: user registration
// statuses, receipt-wait gates and the notified-order ledger. All methods
// are safe for concurrent use.
type Store interface {
	// UserStatus returns the stored registration status for a Telegram user.
	UserStatus(telegramID int64) (*domain.UserStatus, error)
	// SetUserStatus inserts or replaces a user's registration status.
	SetUserStatus(status domain.UserStatus) error
	// PendingUsers lists users whose registration is not yet terminal.
	PendingUsers() ([]domain.UserStatus, error)

	// ReceiptWait returns the active receipt gate for a user, if any.
	ReceiptWait(telegramID int64) (*domain.ReceiptWait, error)
	// SetReceiptWait arms the receipt gate for a user.
	SetReceiptWait(wait domain.ReceiptWait) error
	// ClearReceiptWait removes the receipt gate for a user.
	ClearReceiptWait(telegramID int64) error
	// ReceiptWaits lists all armed receipt gates.
	ReceiptWaits() ([]domain.ReceiptWait, error)

	// OrderNotified reports whether a paid notification was already sent.
	OrderNotified(orderID int64) (bool, error)
	// MarkOrderNotified records that a paid notification was sent.
	MarkOrderNotified(orderID int64) error

	Close() error
}
