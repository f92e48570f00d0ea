package domain

import (
	"fmt"
	"strings"
)

// OrderStatus is the closed set of order states the panel reports. The wire
// carries either an English key or a Persian display string; both parse into
// the same value.
type OrderStatus int

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusPendingReview
	OrderStatusAwaitingUserConfirm
	OrderStatusAwaitingPayment
	OrderStatusAwaitingPaymentCheck
	OrderStatusPaid
	OrderStatusConfirmed
	OrderStatusCompleted
	OrderStatusCancelled
)

var orderStatusKeys = map[OrderStatus]string{
	OrderStatusUnknown:              "unknown",
	OrderStatusPendingReview:        "pending_review",
	OrderStatusAwaitingUserConfirm:  "waiting_for_user_confirmation",
	OrderStatusAwaitingPayment:      "waiting_for_payment",
	OrderStatusAwaitingPaymentCheck: "waiting_for_payment_confirmation",
	OrderStatusPaid:                 "paid",
	OrderStatusConfirmed:            "confirmed",
	OrderStatusCompleted:            "completed",
	OrderStatusCancelled:            "cancelled",
}

var orderStatusDisplay = map[OrderStatus]string{
	OrderStatusUnknown:              "نامشخص",
	OrderStatusPendingReview:        "در انتظار بررسی",
	OrderStatusAwaitingUserConfirm:  "در انتظار تایید کاربر",
	OrderStatusAwaitingPayment:      "در انتظار پرداخت",
	OrderStatusAwaitingPaymentCheck: "در انتظار تایید پرداخت",
	OrderStatusPaid:                 "پرداخت شده",
	OrderStatusConfirmed:            "تایید شده",
	OrderStatusCompleted:            "تکمیل شده",
	OrderStatusCancelled:            "لغو شده",
}

var orderStatusParse = func() map[string]OrderStatus {
	m := make(map[string]OrderStatus, len(orderStatusKeys)*2)
	for status, key := range orderStatusKeys {
		m[key] = status
	}
	for status, display := range orderStatusDisplay {
		m[display] = status
	}
	// aliases the panel has been seen emitting
	m["pending"] = OrderStatusPendingReview
	m["canceled"] = OrderStatusCancelled
	return m
}()

// ParseOrderStatus maps a wire status string to an OrderStatus.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return OrderStatusUnknown, fmt.Errorf("empty order status")
	}
	if status, ok := orderStatusParse[key]; ok {
		return status, nil
	}
	if status, ok := orderStatusParse[strings.ToLower(key)]; ok {
		return status, nil
	}
	return OrderStatusUnknown, fmt.Errorf("unrecognized order status %q", raw)
}

// Key returns the English wire key for the status.
func (s OrderStatus) Key() string {
	if key, ok := orderStatusKeys[s]; ok {
		return key
	}
	return orderStatusKeys[OrderStatusUnknown]
}

// Display returns the Persian display string the panel and users see.
func (s OrderStatus) Display() string {
	if d, ok := orderStatusDisplay[s]; ok {
		return d
	}
	return orderStatusDisplay[OrderStatusUnknown]
}

func (s OrderStatus) String() string { return s.Key() }

// Terminal reports whether the order can no longer change state.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// PaymentPending reports whether the order blocks new flows for its owner
// until the payment sequence resolves.
func (s OrderStatus) PaymentPending() bool {
	switch s {
	case OrderStatusAwaitingUserConfirm, OrderStatusAwaitingPayment,
		OrderStatusAwaitingPaymentCheck, OrderStatusConfirmed:
		return true
	default:
		return false
	}
}
