package bot

import (
	"strconv"
	"time"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/logger"

	tele "gopkg.in/telebot.v4"
)

// handleApprove approves a pending registration: /approve <telegram_id>
func (b *Bot) handleApprove(c tele.Context) error {
	return b.handleDecision(c, domain.UserStateApproved)
}

// handleReject declines a pending registration: /reject <telegram_id>
func (b *Bot) handleReject(c tele.Context) error {
	return b.handleDecision(c, domain.UserStateRejected)
}

func (b *Bot) handleDecision(c tele.Context, state domain.UserState) error {
	ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "admin.decision"))

	args := c.Args()
	if len(args) != 1 {
		return c.Send("استفاده: /approve <telegram_id> یا /reject <telegram_id>")
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || targetID == 0 {
		return c.Send("❌ شناسه کاربر نامعتبر است.")
	}

	if err := b.panel.SetUserState(ctx, targetID, state); err != nil {
		logger.Error(ctx, "telegram", "admin.decision",
			slog.Int64("target_id", targetID),
			slog.String("err", sanitizeErrorMessage(err)),
		)
		return c.Send(msgPanelDown)
	}

	status := domain.UserStatus{
		TelegramID: targetID,
		Role:       domain.RoleMechanic,
		State:      state,
		UpdatedAt:  time.Now().UTC(),
	}
	if cached, err := b.store.UserStatus(targetID); err == nil && cached.Role != "" {
		status.Role = cached.Role
	}
	if err := b.store.SetUserStatus(status); err != nil {
		logger.Error(ctx, "telegram", "user.status.persist",
			slog.Int64("target_id", targetID),
			slog.String("err", err.Error()),
		)
	}

	if b.notifier != nil {
		if err := b.notifier.UserStateChanged(ctx, targetID, state, 0); err != nil {
			logger.Warn(ctx, "telegram", "admin.notify",
				slog.Int64("target_id", targetID),
				slog.String("err", sanitizeErrorMessage(err)),
			)
		}
	}

	logger.Info(ctx, "telegram", "admin.decision",
		slog.Int64("target_id", targetID),
		slog.String("state", string(state)),
	)
	if state == domain.UserStateApproved {
		return c.Send("✅ کاربر تایید شد.")
	}
	return c.Send("❌ کاربر رد شد.")
}
