package poller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/notify"
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
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeMessenger) record(m sentMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
}

func (f *fakeMessenger) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeMessenger) SendText(_ context.Context, userID int64, text string) error {
	f.record(sentMessage{kind: "text", userID: userID, text: text})
	return nil
}

func (f *fakeMessenger) SendMainMenu(_ context.Context, userID int64, text string) error {
	f.record(sentMessage{kind: "menu", userID: userID, text: text})
	return nil
}

func (f *fakeMessenger) SendOrderDecision(_ context.Context, userID, orderID int64, text string) error {
	f.record(sentMessage{kind: "decision", userID: userID, orderID: orderID, text: text})
	return nil
}

// fakePanel serves the panel endpoints the poller touches.
type fakePanel struct {
	mu     sync.Mutex
	orders map[int64]map[string]any // by order id
	users  map[int64]map[string]any // by telegram id
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		orders: make(map[int64]map[string]any),
		users:  make(map[int64]map[string]any),
	}
}

func (f *fakePanel) setOrder(id int64, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[id] = payload
}

func (f *fakePanel) setUser(id int64, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = payload
}

func (f *fakePanel) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.URL.Path == "/health":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/mechanics/api/user/status":
			id, _ := strconv.ParseInt(r.URL.Query().Get("telegram_id"), 10, 64)
			if payload, ok := f.users[id]; ok {
				_ = json.NewEncoder(w).Encode(payload)
				return
			}
			http.NotFound(w, r)
		case r.URL.Path == "/telegram-bot/api/orders":
			status := r.URL.Query().Get("status")
			matched := []map[string]any{}
			for _, payload := range f.orders {
				if payload["status"] == status {
					matched = append(matched, payload)
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"orders": matched})
		case strings.HasPrefix(r.URL.Path, "/telegram-bot/api/orders/"):
			idStr := strings.TrimPrefix(r.URL.Path, "/telegram-bot/api/orders/")
			id, _ := strconv.ParseInt(idStr, 10, 64)
			if payload, ok := f.orders[id]; ok {
				_ = json.NewEncoder(w).Encode(payload)
				return
			}
			http.NotFound(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestPoller(t *testing.T) (*Poller, *fakePanel, *fakeMessenger, store.Store) {
	t.Helper()
	fp := newFakePanel()
	srv := httptest.NewServer(fp.handler())
	t.Cleanup(srv.Close)

	st, err := store.OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	client := panel.New(srv.URL, panel.Timeouts{})
	msg := &fakeMessenger{}

	p := New(client, st, nil, Options{
		Interval:        10 * time.Millisecond,
		HealthInterval:  time.Nanosecond,
		Retries:         0,
		RetryDelay:      time.Millisecond,
		WatcherInterval: 10 * time.Millisecond,
		WatcherMax:      time.Second,
	})
	p.notifier = notify.New(msg, client, st, p)
	return p, fp, msg, st
}

func awaitingPaymentOrder(id, userID int64) map[string]any {
	return map[string]any{
		"id":          id,
		"telegram_id": userID,
		"status":      "در انتظار پرداخت",
		"total_price": 90000,
		"card_number": "6037000011112222",
		"items": []map[string]any{
			{"product_name": "لنت", "quantity": 3, "unit_price": 30000, "total_price": 90000},
		},
	}
}

func TestCycleNotifiesPaymentOnceAndArmsWait(t *testing.T) {
	p, fp, msg, st := newTestPoller(t)
	fp.setOrder(12, awaitingPaymentOrder(12, 7))

	if changes := p.reconcileOrders(context.Background()); changes != 1 {
		t.Fatalf("changes = %d, expected 1", changes)
	}
	sent := msg.messages()
	if len(sent) != 1 || sent[0].kind != "text" {
		t.Fatalf("sent = %+v", sent)
	}
	if !strings.Contains(sent[0].text, "6037000011112222") {
		t.Errorf("payment text missing card: %s", sent[0].text)
	}
	w, err := st.ReceiptWait(7)
	if err != nil || w.OrderID != 12 {
		t.Fatalf("wait = %+v err=%v", w, err)
	}
	if !p.isPaused(12) {
		t.Fatal("order must be paused after payment prompt")
	}

	// second cycle: paused, nothing new
	if changes := p.reconcileOrders(context.Background()); changes != 0 {
		t.Fatalf("second cycle changes = %d", changes)
	}
	if len(msg.messages()) != 1 {
		t.Fatalf("second cycle sent extra messages: %+v", msg.messages())
	}
}

func TestResumeReentersTracking(t *testing.T) {
	p, fp, msg, _ := newTestPoller(t)
	fp.setOrder(12, awaitingPaymentOrder(12, 7))

	_ = p.reconcileOrders(context.Background())
	if !p.isPaused(12) {
		t.Fatal("expected paused")
	}

	// receipt uploaded: order moves on, poller resumed
	fp.setOrder(12, map[string]any{
		"id": 12, "telegram_id": 7, "status": "در انتظار تایید پرداخت",
	})
	p.Resume(12)

	if changes := p.reconcileOrders(context.Background()); changes != 1 {
		t.Fatalf("changes after resume = %d", changes)
	}
	sent := msg.messages()
	last := sent[len(sent)-1]
	if !strings.Contains(last.text, "در حال بررسی") {
		t.Errorf("expected receipt-received text, got %q", last.text)
	}
}

func TestCycleObservesCancelledOrderInReceiptWait(t *testing.T) {
	p, fp, msg, st := newTestPoller(t)
	fp.setOrder(12, awaitingPaymentOrder(12, 7))

	_ = p.reconcileOrders(context.Background())
	if !p.isPaused(12) {
		t.Fatal("expected paused after payment prompt")
	}

	// panel cancels the order while the user sits in the receipt gate
	fp.setOrder(12, map[string]any{
		"id": 12, "telegram_id": 7, "status": "لغو شده",
	})

	if changes := p.reconcileReceiptWaits(context.Background()); changes != 1 {
		t.Fatalf("changes = %d, expected 1", changes)
	}
	sent := msg.messages()
	last := sent[len(sent)-1]
	if !strings.Contains(last.text, "لغو") {
		t.Errorf("expected cancellation text, got %q", last.text)
	}
	if _, err := st.ReceiptWait(7); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("receipt wait still armed, err = %v", err)
	}
}

func TestReceiptWaitSweepLeavesAwaitingPaymentAlone(t *testing.T) {
	p, fp, msg, st := newTestPoller(t)
	fp.setOrder(12, awaitingPaymentOrder(12, 7))

	_ = p.reconcileOrders(context.Background())
	before := len(msg.messages())

	if changes := p.reconcileReceiptWaits(context.Background()); changes != 0 {
		t.Fatalf("changes = %d, expected 0", changes)
	}
	if len(msg.messages()) != before {
		t.Fatalf("sweep messaged an unchanged order: %+v", msg.messages())
	}
	if w, err := st.ReceiptWait(7); err != nil || w.OrderID != 12 {
		t.Fatalf("wait = %+v err=%v", w, err)
	}
}

func TestPaidNotifiesOncePerLedger(t *testing.T) {
	p, fp, msg, st := newTestPoller(t)
	fp.setOrder(30, map[string]any{
		"id": 30, "telegram_id": 9, "status": "پرداخت شده",
	})

	if changes := p.reconcileOrders(context.Background()); changes != 1 {
		t.Fatalf("changes = %d", changes)
	}
	sent := msg.messages()
	if len(sent) != 1 || !strings.Contains(sent[0].text, "#30") {
		t.Fatalf("sent = %+v", sent)
	}
	seen, err := st.OrderNotified(30)
	if err != nil || !seen {
		t.Fatalf("ledger: seen=%v err=%v", seen, err)
	}

	// a fresh poller over the same store stays silent
	p2 := New(p.panel, st, nil, p.opts)
	msg2 := &fakeMessenger{}
	p2.notifier = notify.New(msg2, p.panel, st, p2)
	if changes := p2.reconcileOrders(context.Background()); changes != 0 {
		t.Fatalf("fresh poller changes = %d", changes)
	}
	if len(msg2.messages()) != 0 {
		t.Fatalf("fresh poller sent = %+v", msg2.messages())
	}
}

func TestUserApprovalNotifiesAndPersists(t *testing.T) {
	p, fp, msg, st := newTestPoller(t)
	if err := st.SetUserStatus(domain.UserStatus{
		TelegramID: 7, Role: domain.RoleMechanic, State: domain.UserStatePending,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	fp.setUser(7, map[string]any{
		"status": "approved", "user_type": "mechanic", "commission_percentage": 10.0,
	})

	if changes := p.reconcileUsers(context.Background()); changes != 1 {
		t.Fatalf("changes = %d", changes)
	}
	sent := msg.messages()
	if len(sent) != 2 || sent[1].kind != "menu" {
		t.Fatalf("sent = %+v", sent)
	}
	if !strings.Contains(sent[0].text, "10.0") {
		t.Errorf("expected commission in approval text: %q", sent[0].text)
	}
	u, err := st.UserStatus(7)
	if err != nil || u.State != domain.UserStateApproved {
		t.Fatalf("persisted = %+v err=%v", u, err)
	}

	// approved users drop out of the pending sweep
	if changes := p.reconcileUsers(context.Background()); changes != 0 {
		t.Fatalf("second sweep changes = %d", changes)
	}
}

func TestWatcherStopsOnTerminalStatus(t *testing.T) {
	p, fp, msg, _ := newTestPoller(t)
	fp.setOrder(40, map[string]any{
		"id": 40, "telegram_id": 7, "status": "تکمیل شده",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Watch(ctx, 7, 40)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		p.watchMu.Lock()
		n := len(p.watchers)
		p.watchMu.Unlock()
		if n == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	p.watchMu.Lock()
	remaining := len(p.watchers)
	p.watchMu.Unlock()
	if remaining != 0 {
		t.Fatal("watcher did not terminate on terminal status")
	}
	sent := msg.messages()
	if len(sent) != 1 || !strings.Contains(sent[0].text, "تکمیل") {
		t.Fatalf("sent = %+v", sent)
	}
}

func TestWatchReplacesExistingWatcher(t *testing.T) {
	p, fp, _, _ := newTestPoller(t)
	fp.setOrder(41, map[string]any{
		"id": 41, "telegram_id": 7, "status": "در انتظار بررسی",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Watch(ctx, 7, 41)
	p.Watch(ctx, 7, 41)

	p.watchMu.Lock()
	n := len(p.watchers)
	p.watchMu.Unlock()
	if n != 1 {
		t.Fatalf("watchers = %d, expected 1", n)
	}
	cancel()
	p.wg.Wait()
}
