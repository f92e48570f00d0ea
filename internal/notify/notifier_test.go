package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/panel"
	"github.com/parnamyadak/partsbot/internal/store"
)

type sentMessage struct {
	kind    string
	userID  int64
	orderID int64
	text    string
}

type fakeMessenger struct {
	sent []sentMessage
}

func (f *fakeMessenger) SendText(_ context.Context, userID int64, text string) error {
	f.sent = append(f.sent, sentMessage{kind: "text", userID: userID, text: text})
	return nil
}

func (f *fakeMessenger) SendMainMenu(_ context.Context, userID int64, text string) error {
	f.sent = append(f.sent, sentMessage{kind: "menu", userID: userID, text: text})
	return nil
}

func (f *fakeMessenger) SendOrderDecision(_ context.Context, userID, orderID int64, text string) error {
	f.sent = append(f.sent, sentMessage{kind: "decision", userID: userID, orderID: orderID, text: text})
	return nil
}

type fakeTracker struct {
	paused  []int64
	resumed []int64
}

func (f *fakeTracker) Pause(id int64)  { f.paused = append(f.paused, id) }
func (f *fakeTracker) Resume(id int64) { f.resumed = append(f.resumed, id) }

func orderDetailServer(t *testing.T) *panel.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          12,
			"telegram_id": 7,
			"status":      "در انتظار پرداخت",
			"total_price": 250000,
			"card_number": "6037991234567890",
			"card_holder": "پرنام یدک",
			"bank":        "ملی",
			"items": []map[string]any{
				{"product_name": "لنت ترمز", "quantity": 2, "unit_price": 100000, "total_price": 200000},
				{"product_name": "فیلتر", "quantity": 1, "unit_price": 50000, "total_price": 50000},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return panel.New(srv.URL, panel.Timeouts{})
}

func newTestNotifier(t *testing.T) (*Notifier, *fakeMessenger, *fakeTracker, store.Store) {
	t.Helper()
	st, err := store.OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	msg := &fakeMessenger{}
	tracker := &fakeTracker{}
	return New(msg, orderDetailServer(t), st, tracker), msg, tracker, st
}

func TestUserApprovedSendsCommissionAndMenu(t *testing.T) {
	n, msg, _, _ := newTestNotifier(t)
	if err := n.UserStateChanged(context.Background(), 7, domain.UserStateApproved, 12.5); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(msg.sent) != 2 {
		t.Fatalf("sent = %d messages", len(msg.sent))
	}
	if !strings.Contains(msg.sent[0].text, "12.5") {
		t.Errorf("expected commission in text: %q", msg.sent[0].text)
	}
	if msg.sent[1].kind != "menu" || msg.sent[1].text != "منوی اصلی:" {
		t.Errorf("second message = %+v", msg.sent[1])
	}
}

func TestUserPendingIsSilent(t *testing.T) {
	n, msg, _, _ := newTestNotifier(t)
	if err := n.UserStateChanged(context.Background(), 7, domain.UserStatePending, 0); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(msg.sent) != 0 {
		t.Fatalf("pending must not message the user, sent %d", len(msg.sent))
	}
}

func TestAwaitingPaymentArmsReceiptWaitAndPauses(t *testing.T) {
	n, msg, tracker, st := newTestNotifier(t)
	err := n.OrderStatusChanged(context.Background(), 7, 12, domain.OrderStatusAwaitingPayment, nil)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(msg.sent) != 1 || msg.sent[0].kind != "text" {
		t.Fatalf("sent = %+v", msg.sent)
	}
	text := msg.sent[0].text
	for _, want := range []string{"6037991234567890", "پرنام یدک", "250,000"} {
		if !strings.Contains(text, want) {
			t.Errorf("payment text missing %q: %s", want, text)
		}
	}
	w, err := st.ReceiptWait(7)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if w.OrderID != 12 {
		t.Errorf("wait order = %d", w.OrderID)
	}
	if len(tracker.paused) != 1 || tracker.paused[0] != 12 {
		t.Errorf("paused = %v", tracker.paused)
	}
}

func TestAwaitingUserConfirmSendsDecision(t *testing.T) {
	n, msg, _, _ := newTestNotifier(t)
	err := n.OrderStatusChanged(context.Background(), 7, 12, domain.OrderStatusAwaitingUserConfirm, nil)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(msg.sent) != 1 || msg.sent[0].kind != "decision" || msg.sent[0].orderID != 12 {
		t.Fatalf("sent = %+v", msg.sent)
	}
	text := msg.sent[0].text
	if !strings.Contains(text, "2 × 100,000 = 200,000") {
		t.Errorf("expected per-item price line, got: %s", text)
	}
}

func TestTerminalStatusesSendPlainText(t *testing.T) {
	n, msg, _, _ := newTestNotifier(t)
	_ = n.OrderStatusChanged(context.Background(), 7, 12, domain.OrderStatusCompleted, nil)
	_ = n.OrderStatusChanged(context.Background(), 7, 12, domain.OrderStatusCancelled, nil)
	if len(msg.sent) != 2 {
		t.Fatalf("sent = %d", len(msg.sent))
	}
	if !strings.Contains(msg.sent[0].text, "تکمیل") || !strings.Contains(msg.sent[1].text, "لغو") {
		t.Errorf("sent = %+v", msg.sent)
	}
}

func TestCancelledClearsReceiptWait(t *testing.T) {
	n, _, tracker, st := newTestNotifier(t)
	if err := st.SetReceiptWait(domain.ReceiptWait{TelegramID: 7, OrderID: 12}); err != nil {
		t.Fatalf("arm wait: %v", err)
	}
	if err := n.OrderStatusChanged(context.Background(), 7, 12, domain.OrderStatusCancelled, nil); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if _, err := st.ReceiptWait(7); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("wait not cleared, err = %v", err)
	}
	if len(tracker.paused) != 1 || tracker.paused[0] != 12 {
		t.Errorf("paused = %v", tracker.paused)
	}
}

func TestPaymentConfirmedPausesTracking(t *testing.T) {
	n, msg, tracker, _ := newTestNotifier(t)
	if err := n.PaymentConfirmed(context.Background(), 7, 12); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(msg.sent) != 1 || !strings.Contains(msg.sent[0].text, "#12") {
		t.Fatalf("sent = %+v", msg.sent)
	}
	if len(tracker.paused) != 1 || tracker.paused[0] != 12 {
		t.Errorf("paused = %v", tracker.paused)
	}
}

func TestFormatToman(t *testing.T) {
	cases := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		250000:   "250,000",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
	}
	for n, want := range cases {
		if got := FormatToman(n); got != want {
			t.Errorf("FormatToman(%d) = %q, expected %q", n, got, want)
		}
	}
}
