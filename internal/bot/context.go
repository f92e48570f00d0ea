package bot

import (
	"context"

	"github.com/parnamyadak/partsbot/internal/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxStoreKey = "logger_ctx"

// BuildContext derives a context.Context carrying update metadata and a
// correlation id from a telebot context. The result is cached on c so
// repeated calls within one update are cheap.
func BuildContext(c tele.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if v := c.Get(ctxStoreKey); v != nil {
		if ctx, ok := v.(context.Context); ok {
			return ctx
		}
	}

	var (
		updateID = c.Update().ID
		userID   int64
		chatID   int64
	)
	if sender := c.Sender(); sender != nil {
		userID = sender.ID
	}
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}

	ctx := context.Background()
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithRID(ctx, logger.BuildRID(updateID, chatID, userID))

	c.Set(ctxStoreKey, ctx)
	return ctx
}

// StoreContext replaces the cached context on c, typically after annotating
// it with a handler name or order id.
func StoreContext(c tele.Context, ctx context.Context) context.Context {
	if c != nil && ctx != nil {
		c.Set(ctxStoreKey, ctx)
	}
	return ctx
}
