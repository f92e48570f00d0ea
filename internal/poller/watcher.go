package poller

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/logger"
	"github.com/parnamyadak/partsbot/internal/panel"
)

type watcherHandle struct {
	cancel context.CancelFunc
}

// Watch starts a supervised watcher that probes one order until it reaches
// a terminal status, the maximum lifetime passes, or ctx is cancelled.
// Starting a second watcher for the same order replaces the first.
func (p *Poller) Watch(ctx context.Context, telegramID, orderID int64) {
	watchCtx, cancel := context.WithTimeout(ctx, p.opts.WatcherMax)
	handle := &watcherHandle{cancel: cancel}

	p.watchMu.Lock()
	if old, ok := p.watchers[orderID]; ok {
		old.cancel()
	}
	p.watchers[orderID] = handle
	p.wg.Add(1)
	p.watchMu.Unlock()

	go p.runWatcher(watchCtx, handle, telegramID, orderID)
}

func (p *Poller) runWatcher(ctx context.Context, handle *watcherHandle, telegramID, orderID int64) {
	defer p.wg.Done()
	defer p.dropWatcher(orderID, handle)

	ctx = logger.WithOrderID(ctx, orderID)
	logger.Info(ctx, "poller", "watcher.start",
		slog.Int64("user_id", telegramID),
	)

	ticker := time.NewTicker(p.opts.WatcherInterval)
	defer ticker.Stop()

	last := domain.OrderStatusUnknown
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "poller", "watcher.stop",
				slog.String("reason", stopReason(ctx)),
			)
			return
		case <-ticker.C:
		}

		if p.isPaused(orderID) {
			continue
		}

		detail, err := p.panel.Order(ctx, orderID)
		if err != nil {
			if errors.Is(err, panel.ErrNotFound) {
				logger.Warn(ctx, "poller", "watcher.gone")
				return
			}
			logger.Warn(ctx, "poller", "watcher.probe",
				slog.String("err", err.Error()),
			)
			continue
		}

		status := detail.Order.Status
		if status == last {
			continue
		}
		last = status

		if err := p.notifier.OrderStatusChanged(ctx, telegramID, orderID, status, detail); err != nil {
			logger.Error(ctx, "poller", "watcher.notify",
				slog.String("order_status", status.Key()),
				slog.String("err", err.Error()),
			)
		}
		if status.Terminal() {
			logger.Info(ctx, "poller", "watcher.done",
				slog.String("order_status", status.Key()),
			)
			return
		}
	}
}

func (p *Poller) dropWatcher(orderID int64, handle *watcherHandle) {
	handle.cancel()
	p.watchMu.Lock()
	defer p.watchMu.Unlock()
	if current, ok := p.watchers[orderID]; ok && current == handle {
		delete(p.watchers, orderID)
	}
}

func (p *Poller) stopWatchers() {
	p.watchMu.Lock()
	for id, handle := range p.watchers {
		handle.cancel()
		delete(p.watchers, id)
	}
	p.watchMu.Unlock()
	p.wg.Wait()
}

func stopReason(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "max lifetime"
	}
	return "shutdown"
}
