package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role distinguishes the two registered account kinds.
type Role string

const (
	RoleMechanic Role = "mechanic"
	RoleCustomer Role = "customer"
)

// ParseRole maps a wire role string to a Role.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mechanic":
		return RoleMechanic, nil
	case "customer":
		return RoleCustomer, nil
	default:
		return "", fmt.Errorf("unrecognized role %q", raw)
	}
}

// UserState is the registration lifecycle of a Telegram user.
type UserState string

const (
	UserStateGuest    UserState = "guest"
	UserStatePending  UserState = "pending"
	UserStateApproved UserState = "approved"
	UserStateRejected UserState = "rejected"
)

// ParseUserState maps a wire state string to a UserState.
func ParseUserState(raw string) (UserState, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "guest", "not_registered", "unregistered":
		return UserStateGuest, nil
	case "pending", "در انتظار تایید":
		return UserStatePending, nil
	case "approved", "active", "تایید شده":
		return UserStateApproved, nil
	case "rejected", "رد شده":
		return UserStateRejected, nil
	default:
		return "", fmt.Errorf("unrecognized user state %q", raw)
	}
}

// Terminal reports whether the registration can still change remotely.
// Rejected users may re-register, so only approved is terminal for polling.
func (s UserState) Terminal() bool {
	return s == UserStateApproved
}

// UserStatus is the locally persisted view of a user's registration.
type UserStatus struct {
	TelegramID int64     `json:"telegram_id" db:"telegram_id"`
	Role       Role      `json:"role" db:"role"`
	State      UserState `json:"state" db:"state"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
