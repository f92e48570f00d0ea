package bot

import (
	"strings"
	"testing"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/session"
)

func TestMenuForStates(t *testing.T) {
	cases := []struct {
		state domain.UserState
		want  string
	}{
		{domain.UserStateGuest, btnRegisterMechanic},
		{domain.UserStatePending, btnRegistrationInfo},
		{domain.UserStateApproved, btnNewOrder},
		{domain.UserStateRejected, btnRegisterAgain},
	}
	for _, tc := range cases {
		rm := MenuFor(tc.state)
		if len(rm.ReplyKeyboard) == 0 || len(rm.ReplyKeyboard[0]) == 0 {
			t.Fatalf("%s: empty keyboard", tc.state)
		}
		if got := rm.ReplyKeyboard[0][0].Text; got != tc.want {
			t.Errorf("%s: first button = %q, expected %q", tc.state, got, tc.want)
		}
	}
}

func TestMenuForApprovedHasOrderButtons(t *testing.T) {
	rm := MenuFor(domain.UserStateApproved)
	if len(rm.ReplyKeyboard) != 2 {
		t.Fatalf("rows = %d, expected 2", len(rm.ReplyKeyboard))
	}
	if rm.ReplyKeyboard[0][1].Text != btnMyOrders {
		t.Errorf("second button = %q, expected %q", rm.ReplyKeyboard[0][1].Text, btnMyOrders)
	}
	if rm.ReplyKeyboard[1][0].Text != btnSupport {
		t.Errorf("support row = %q", rm.ReplyKeyboard[1][0].Text)
	}
}

func TestOrderSummary(t *testing.T) {
	items := []domain.Item{
		{ProductName: "لنت ترمز", Quantity: 2, PhotoFileID: "abc"},
		{ProductName: "فیلتر روغن", Quantity: 1},
	}
	text := orderSummary(items)

	if !strings.HasPrefix(text, msgOrderSummaryHead) {
		t.Errorf("summary missing header: %q", text)
	}
	if !strings.Contains(text, "1. لنت ترمز | تعداد: 2 📷") {
		t.Errorf("first line wrong: %q", text)
	}
	if !strings.Contains(text, "2. فیلتر روغن | تعداد: 1") {
		t.Errorf("second line wrong: %q", text)
	}
	if strings.Contains(text, "فیلتر روغن | تعداد: 1 📷") {
		t.Errorf("photo marker on photo-less item: %q", text)
	}
}

func TestPendingOrderMessage(t *testing.T) {
	cases := []struct {
		status domain.OrderStatus
		want   string
	}{
		{domain.OrderStatusAwaitingUserConfirm, "تایید قیمت"},
		{domain.OrderStatusAwaitingPayment, "انتظار پرداخت"},
		{domain.OrderStatusAwaitingPaymentCheck, "در حال بررسی"},
		{domain.OrderStatusConfirmed, "در حال پردازش"},
	}
	for _, tc := range cases {
		if got := pendingOrderMessage(tc.status); !strings.Contains(got, tc.want) {
			t.Errorf("%s: message %q missing %q", tc.status, got, tc.want)
		}
	}
}

func TestPromptForSharedAddressStep(t *testing.T) {
	if got := promptFor(domain.RoleMechanic, session.StepAddress); got != msgAskAddress {
		t.Errorf("mechanic address prompt = %q", got)
	}
	if got := promptFor(domain.RoleCustomer, session.StepAddress); got != msgAskHomeAddr {
		t.Errorf("customer address prompt = %q", got)
	}
}

func TestPromptForCoversAllSteps(t *testing.T) {
	steps := []session.RegistrationStep{
		session.StepFullName, session.StepMobile, session.StepCardNumber,
		session.StepSheba, session.StepAddress, session.StepLicense,
		session.StepFirstName, session.StepPhone, session.StepProvince,
		session.StepCity, session.StepPostalCode,
	}
	for _, step := range steps {
		if got := promptFor(domain.RoleMechanic, step); got == "" || got == msgMenuPrompt {
			t.Errorf("step %s has no prompt", step)
		}
	}
}

func TestSplitName(t *testing.T) {
	cases := []struct {
		in          string
		first, last string
	}{
		{"علی رضایی", "علی", "رضایی"},
		{"علی", "علی", ""},
		{"علی محمد رضایی", "علی", "محمد رضایی"},
		{"", "", ""},
	}
	for _, tc := range cases {
		first, last := splitName(tc.in)
		if first != tc.first || last != tc.last {
			t.Errorf("splitName(%q) = (%q, %q), expected (%q, %q)",
				tc.in, first, last, tc.first, tc.last)
		}
	}
}

func TestInlineKeyboards(t *testing.T) {
	rm := photoChoiceKeyboard()
	if len(rm.InlineKeyboard) != 1 || len(rm.InlineKeyboard[0]) != 2 {
		t.Fatalf("photo choice layout: %+v", rm.InlineKeyboard)
	}

	rm = orderDecisionKeyboard("42")
	for _, btn := range rm.InlineKeyboard[0] {
		if !strings.Contains(btn.Data, "42") {
			t.Errorf("decision button data %q missing order id", btn.Data)
		}
	}

	rm = paymentDecisionKeyboard("55")
	if len(rm.InlineKeyboard) != 2 {
		t.Fatalf("payment decision layout: %+v", rm.InlineKeyboard)
	}
	for _, row := range rm.InlineKeyboard {
		if !strings.Contains(row[0].Data, "55") {
			t.Errorf("payment button data %q missing order id", row[0].Data)
		}
	}
}
