// Package poller reconciles panel state with what users have been told.
// It runs only in long-poll mode; webhook mode receives pushes instead.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/logger"
	"github.com/parnamyadak/partsbot/internal/notify"
	"github.com/parnamyadak/partsbot/internal/panel"
	"github.com/parnamyadak/partsbot/internal/store"
)

// sweepStatuses are the order states the reconciliation cycle watches.
var sweepStatuses = []domain.OrderStatus{
	domain.OrderStatusAwaitingUserConfirm,
	domain.OrderStatusAwaitingPayment,
	domain.OrderStatusAwaitingPaymentCheck,
	domain.OrderStatusPaid,
}

// Options tunes the poller.
type Options struct {
	Interval        time.Duration
	HealthInterval  time.Duration
	Retries         int
	RetryDelay      time.Duration
	WatcherInterval time.Duration
	WatcherMax      time.Duration
}

func (o *Options) fill() {
	if o.Interval <= 0 {
		o.Interval = 60 * time.Second
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = 60 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 10 * time.Second
	}
	if o.WatcherInterval <= 0 {
		o.WatcherInterval = 30 * time.Second
	}
	if o.WatcherMax <= 0 {
		o.WatcherMax = 24 * time.Hour
	}
}

// Poller drives reconciliation cycles and per-order watchers.
type Poller struct {
	panel    *panel.Client
	store    store.Store
	notifier *notify.Notifier
	opts     Options

	mu          sync.Mutex
	prevOrders  map[int64]domain.OrderStatus
	prevUsers   map[int64]domain.UserState
	paused      map[int64]struct{}
	lastHealth  time.Time
	lastHealthy bool

	watchMu  sync.Mutex
	watchers map[int64]*watcherHandle
	wg       sync.WaitGroup
}

// New builds a Poller.
func New(client *panel.Client, st store.Store, notifier *notify.Notifier, opts Options) *Poller {
	opts.fill()
	return &Poller{
		panel:      client,
		store:      st,
		notifier:   notifier,
		opts:       opts,
		prevOrders: make(map[int64]domain.OrderStatus),
		prevUsers:  make(map[int64]domain.UserState),
		paused:     make(map[int64]struct{}),
		watchers:   make(map[int64]*watcherHandle),
	}
}

// SetNotifier installs the notifier. The notifier needs the poller as its
// tracker, so the two are wired in two steps. Call before Run.
func (p *Poller) SetNotifier(n *notify.Notifier) {
	p.notifier = n
}

// Pause stops cycle notifications for an order until Resume.
func (p *Poller) Pause(orderID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused[orderID] = struct{}{}
}

// Resume re-enters an order into cycle tracking.
func (p *Poller) Resume(orderID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.paused, orderID)
}

func (p *Poller) isPaused(orderID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.paused[orderID]
	return ok
}

// Run blocks driving reconciliation cycles until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	logger.Info(ctx, "poller", "poller.start",
		slog.Duration("interval", p.opts.Interval),
	)
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		p.cycle(ctx)
		select {
		case <-ctx.Done():
			p.stopWatchers()
			logger.Info(ctx, "poller", "poller.stop")
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	start := time.Now()
	if !p.healthy(ctx) {
		logger.Warn(ctx, "poller", "poll.skip",
			slog.String("reason", "panel unreachable"),
		)
		return
	}

	orders := p.reconcileOrders(ctx)
	orders += p.reconcileReceiptWaits(ctx)
	users := p.reconcileUsers(ctx)

	logger.Info(ctx, "poller", "poll.cycle",
		slog.Int("order_changes", orders),
		slog.Int("user_changes", users),
		slog.Duration("duration", logger.Took(start)),
	)
}

// healthy probes panel connectivity, caching the result between probes.
func (p *Poller) healthy(ctx context.Context) bool {
	p.mu.Lock()
	if time.Since(p.lastHealth) < p.opts.HealthInterval {
		ok := p.lastHealthy
		p.mu.Unlock()
		return ok
	}
	p.mu.Unlock()

	err := p.panel.Health(ctx)

	p.mu.Lock()
	p.lastHealth = time.Now()
	p.lastHealthy = err == nil
	p.mu.Unlock()
	if err != nil {
		logger.Warn(ctx, "poller", "panel.health",
			slog.String("err", err.Error()),
		)
	}
	return err == nil
}

// reconcileOrders sweeps tracked statuses and notifies owners of changes.
// It returns the number of transitions handled.
func (p *Poller) reconcileOrders(ctx context.Context) int {
	changes := 0
	for _, status := range sweepStatuses {
		var orders []domain.Order
		err := p.withRetries(ctx, func() error {
			var e error
			orders, e = p.panel.Orders(ctx, panel.OrdersFilter{Status: status})
			return e
		})
		if err != nil {
			logger.Error(ctx, "poller", "poll.orders",
				slog.String("order_status", status.Key()),
				slog.String("err", err.Error()),
			)
			continue
		}
		for _, order := range orders {
			if p.handleOrder(ctx, order) {
				changes++
			}
		}
	}
	return changes
}

func (p *Poller) handleOrder(ctx context.Context, order domain.Order) bool {
	if p.isPaused(order.ID) {
		return false
	}

	p.mu.Lock()
	prev, seen := p.prevOrders[order.ID]
	p.prevOrders[order.ID] = order.Status
	p.mu.Unlock()
	if seen && prev == order.Status {
		return false
	}

	ctx = logger.WithOrderID(ctx, order.ID)

	// The notifier consults the ledger again before messaging; the check
	// here only keeps already-notified paid orders out of the change count.
	if order.Status == domain.OrderStatusPaid {
		notified, err := p.store.OrderNotified(order.ID)
		if err != nil {
			logger.Error(ctx, "poller", "ledger.check",
				slog.String("err", err.Error()),
			)
			return false
		}
		if notified {
			return false
		}
	}

	if err := p.notifier.OrderStatusChanged(ctx, order.TelegramID, order.ID, order.Status, nil); err != nil {
		logger.Error(ctx, "poller", "notify.order",
			slog.String("order_status", order.Status.Key()),
			slog.String("err", err.Error()),
		)
		return false
	}
	return true
}

// reconcileReceiptWaits probes every armed receipt gate directly. The
// payment prompt pauses its order, so the status sweep alone would never
// see a panel-side transition while the user sits in the gate.
func (p *Poller) reconcileReceiptWaits(ctx context.Context) int {
	waits, err := p.store.ReceiptWaits()
	if err != nil {
		logger.Error(ctx, "poller", "poll.receipts",
			slog.String("err", err.Error()),
		)
		return 0
	}

	changes := 0
	for _, wait := range waits {
		wctx := logger.WithOrderID(ctx, wait.OrderID)
		var detail *panel.OrderDetail
		err := p.withRetries(ctx, func() error {
			var e error
			detail, e = p.panel.Order(ctx, wait.OrderID)
			return e
		})
		if err != nil {
			if errors.Is(err, panel.ErrNotFound) {
				logger.Warn(wctx, "poller", "receipt.order.gone")
				p.clearWait(wctx, wait.TelegramID)
			} else {
				logger.Warn(wctx, "poller", "receipt.order.probe",
					slog.String("err", err.Error()),
				)
			}
			continue
		}

		if detail.Order.Status == domain.OrderStatusAwaitingPayment {
			continue
		}

		// The order moved while the gate was armed. Lift the pause and the
		// gate so the transition reaches the user.
		p.Resume(wait.OrderID)
		p.clearWait(wctx, wait.TelegramID)

		order := detail.Order
		if order.TelegramID == 0 {
			order.TelegramID = wait.TelegramID
		}
		if p.handleOrder(ctx, order) {
			changes++
		}
	}
	return changes
}

func (p *Poller) clearWait(ctx context.Context, telegramID int64) {
	if err := p.store.ClearReceiptWait(telegramID); err != nil {
		logger.Error(ctx, "poller", "receipt.wait.clear",
			slog.Int64("user_id", telegramID),
			slog.String("err", err.Error()),
		)
	}
}

// reconcileUsers refreshes non-terminal registrations and notifies on change.
func (p *Poller) reconcileUsers(ctx context.Context) int {
	pending, err := p.store.PendingUsers()
	if err != nil {
		logger.Error(ctx, "poller", "poll.users",
			slog.String("err", err.Error()),
		)
		return 0
	}

	changes := 0
	for _, user := range pending {
		var info *panel.UserStatusInfo
		err := p.withRetries(ctx, func() error {
			var e error
			info, e = p.panel.UserStatus(ctx, user.TelegramID)
			return e
		})
		if err != nil {
			logger.Warn(ctx, "poller", "poll.user.status",
				slog.Int64("user_id", user.TelegramID),
				slog.String("err", err.Error()),
			)
			continue
		}

		p.mu.Lock()
		prev, seen := p.prevUsers[user.TelegramID]
		p.prevUsers[user.TelegramID] = info.State
		p.mu.Unlock()
		if info.State == user.State || (seen && prev == info.State) {
			continue
		}

		updated := user
		updated.State = info.State
		if info.Role != "" {
			updated.Role = info.Role
		}
		updated.UpdatedAt = time.Now().UTC()
		if err := p.store.SetUserStatus(updated); err != nil {
			logger.Error(ctx, "poller", "user.status.persist",
				slog.Int64("user_id", user.TelegramID),
				slog.String("err", err.Error()),
			)
			continue
		}
		if err := p.notifier.UserStateChanged(ctx, user.TelegramID, info.State, info.Commission); err != nil {
			logger.Error(ctx, "poller", "notify.user",
				slog.Int64("user_id", user.TelegramID),
				slog.String("err", err.Error()),
			)
			continue
		}
		changes++
	}
	return changes
}

// withRetries runs fn up to retries+1 times with a fixed delay between
// attempts. Cancellation cuts the wait short.
func (p *Poller) withRetries(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.opts.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, panel.ErrPanelUnavailable) {
			return lastErr
		}
		if attempt == p.opts.Retries {
			break
		}
		timer := time.NewTimer(p.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
