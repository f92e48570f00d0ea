package domain

import "testing"

func TestParseOrderStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want OrderStatus
	}{
		{"waiting_for_payment", OrderStatusAwaitingPayment},
		{"در انتظار پرداخت", OrderStatusAwaitingPayment},
		{"در انتظار تایید کاربر", OrderStatusAwaitingUserConfirm},
		{"در انتظار تایید پرداخت", OrderStatusAwaitingPaymentCheck},
		{"paid", OrderStatusPaid},
		{"پرداخت شده", OrderStatusPaid},
		{"تایید شده", OrderStatusConfirmed},
		{"تکمیل شده", OrderStatusCompleted},
		{"لغو شده", OrderStatusCancelled},
		{"canceled", OrderStatusCancelled},
		{"Pending", OrderStatusPendingReview},
		{"  completed  ", OrderStatusCompleted},
	}
	for _, tc := range cases {
		got, err := ParseOrderStatus(tc.raw)
		if err != nil {
			t.Errorf("ParseOrderStatus(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseOrderStatus(%q) = %v, expected %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseOrderStatusRejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "shipped", "!!"} {
		if _, err := ParseOrderStatus(raw); err == nil {
			t.Errorf("ParseOrderStatus(%q): expected error", raw)
		}
	}
}

func TestOrderStatusRoundTrip(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPendingReview,
		OrderStatusAwaitingUserConfirm,
		OrderStatusAwaitingPayment,
		OrderStatusAwaitingPaymentCheck,
		OrderStatusPaid,
		OrderStatusConfirmed,
		OrderStatusCompleted,
		OrderStatusCancelled,
	}
	for _, status := range all {
		fromKey, err := ParseOrderStatus(status.Key())
		if err != nil || fromKey != status {
			t.Errorf("key round trip for %v: got %v, err %v", status, fromKey, err)
		}
		fromDisplay, err := ParseOrderStatus(status.Display())
		if err != nil || fromDisplay != status {
			t.Errorf("display round trip for %v: got %v, err %v", status, fromDisplay, err)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if !OrderStatusCompleted.Terminal() || !OrderStatusCancelled.Terminal() {
		t.Error("completed and cancelled must be terminal")
	}
	if OrderStatusAwaitingPayment.Terminal() || OrderStatusPaid.Terminal() {
		t.Error("in-flight statuses must not be terminal")
	}
}

func TestOrderStatusPaymentPending(t *testing.T) {
	pending := []OrderStatus{
		OrderStatusAwaitingUserConfirm,
		OrderStatusAwaitingPayment,
		OrderStatusAwaitingPaymentCheck,
		OrderStatusConfirmed,
	}
	for _, status := range pending {
		if !status.PaymentPending() {
			t.Errorf("%v should block new flows", status)
		}
	}
	for _, status := range []OrderStatus{OrderStatusCompleted, OrderStatusCancelled, OrderStatusPaid} {
		if status.PaymentPending() {
			t.Errorf("%v should not block new flows", status)
		}
	}
}

func TestParseUserState(t *testing.T) {
	cases := []struct {
		raw  string
		want UserState
	}{
		{"", UserStateGuest},
		{"not_registered", UserStateGuest},
		{"pending", UserStatePending},
		{"Approved", UserStateApproved},
		{"rejected", UserStateRejected},
	}
	for _, tc := range cases {
		got, err := ParseUserState(tc.raw)
		if err != nil {
			t.Errorf("ParseUserState(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseUserState(%q) = %v, expected %v", tc.raw, got, tc.want)
		}
	}
	if _, err := ParseUserState("banned"); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestItemComplete(t *testing.T) {
	if (Item{ProductName: "لنت ترمز"}).Complete() {
		t.Error("item without quantity must be incomplete")
	}
	if (Item{Quantity: 2}).Complete() {
		t.Error("item without name must be incomplete")
	}
	if !(Item{ProductName: "لنت ترمز", Quantity: 2}).Complete() {
		t.Error("named item with quantity must be complete")
	}
}
