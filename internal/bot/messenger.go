package bot

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/panel"

	tele "gopkg.in/telebot.v4"
)

// SendText sends a plain text message to a user.
func (b *Bot) SendText(ctx context.Context, telegramID int64, text string) error {
	return b.send(ctx, "send.text", &tele.User{ID: telegramID}, text)
}

// SendMainMenu sends text together with the role menu for the user.
func (b *Bot) SendMainMenu(ctx context.Context, telegramID int64, text string) error {
	user := b.resolveUser(ctx, telegramID)
	return b.send(ctx, "send.menu", &tele.User{ID: telegramID}, text, MenuFor(user.State))
}

// SendOrderDecision sends text with confirm/cancel buttons for a priced order.
func (b *Bot) SendOrderDecision(ctx context.Context, telegramID, orderID int64, text string) error {
	markup := orderDecisionKeyboard(strconv.FormatInt(orderID, 10))
	return b.send(ctx, "send.decision", &tele.User{ID: telegramID}, text, markup)
}

// send queues the message on the dispatcher, falling back to a synchronous
// send when the queue cannot take it.
func (b *Bot) send(ctx context.Context, action string, to tele.Recipient, what any, opts ...any) error {
	run := func() error {
		_, err := b.tb.Send(to, what, opts...)
		return err
	}
	err := b.dispatcher.Enqueue(ctx, action, run)
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueClosed) {
		return run()
	}
	return err
}

// resolveUser returns the freshest registration view available. Approved
// users are served from the local store; everyone else is checked against
// the panel so approvals show up without waiting for a poll cycle.
func (b *Bot) resolveUser(ctx context.Context, telegramID int64) domain.UserStatus {
	cached, cacheErr := b.store.UserStatus(telegramID)
	if cacheErr == nil && cached.State == domain.UserStateApproved {
		return *cached
	}

	info, err := b.panel.UserStatus(ctx, telegramID)
	if err != nil {
		if errors.Is(err, panel.ErrNotFound) {
			return domain.UserStatus{TelegramID: telegramID, State: domain.UserStateGuest}
		}
		if cacheErr == nil {
			return *cached
		}
		return domain.UserStatus{TelegramID: telegramID, State: domain.UserStateGuest}
	}

	status := domain.UserStatus{
		TelegramID: telegramID,
		Role:       info.Role,
		State:      info.State,
		UpdatedAt:  time.Now().UTC(),
	}
	if status.Role == "" && cacheErr == nil {
		status.Role = cached.Role
	}
	if status.State != domain.UserStateGuest {
		_ = b.store.SetUserStatus(status)
	}
	return status
}

// receiptWaitFor returns the armed receipt wait for a user, if any.
func (b *Bot) receiptWaitFor(telegramID int64) (domain.ReceiptWait, bool) {
	wait, err := b.store.ReceiptWait(telegramID)
	if err != nil || wait == nil {
		return domain.ReceiptWait{}, false
	}
	return *wait, true
}
