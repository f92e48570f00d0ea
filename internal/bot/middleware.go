package bot

import (
	"runtime/debug"
	"sync"
	"time"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/logger"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware converts handler panics into logged errors so one bad
// update cannot take the bot down.
func RecoverMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					ctx := BuildContext(c)
					logger.Error(ctx, "telegram", "handler.panic",
						slog.Any("panic", r),
						slog.String("stack", logger.SanitizeLimit(string(debug.Stack()), 2000)),
					)
					err = nil
				}
			}()
			return next(c)
		}
	}
}

// LoggerMiddleware logs one line per handled update with duration and
// status. Duplicate deliveries of the same update id are logged once.
func LoggerMiddleware() tele.MiddlewareFunc {
	var (
		mu     sync.Mutex
		logged = make(map[int]struct{})
	)
	const loggedCap = 4096

	alreadyLogged := func(updateID int) bool {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := logged[updateID]; ok {
			return true
		}
		if len(logged) >= loggedCap {
			logged = make(map[int]struct{})
		}
		logged[updateID] = struct{}{}
		return false
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			BuildContext(c)
			start := time.Now()
			err := next(c)

			if alreadyLogged(c.Update().ID) {
				return err
			}

			// Handlers annotate the cached context, so rebuild after next.
			ctx := BuildContext(c)
			attrs := []slog.Attr{
				slog.String("status", logger.Status(err)),
				slog.Duration("duration", logger.Took(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("err", sanitizeErrorMessage(err)))
				logger.Error(ctx, "telegram", "update.handled", attrs...)
				return err
			}
			logger.Info(ctx, "telegram", "update.handled", attrs...)
			return nil
		}
	}
}

// RateLimitMiddleware drops updates arriving faster than interval per user.
// Update types listed in exclude bypass the limit.
func RateLimitMiddleware(interval time.Duration, exclude []string) tele.MiddlewareFunc {
	excluded := make(map[string]struct{}, len(exclude))
	for _, kind := range exclude {
		excluded[kind] = struct{}{}
	}

	var (
		mu   sync.Mutex
		last = make(map[int64]time.Time)
	)

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if interval <= 0 {
				return next(c)
			}
			sender := c.Sender()
			if sender == nil {
				return next(c)
			}
			kind := "message"
			if c.Callback() != nil {
				kind = "callback"
			}
			if _, ok := excluded[kind]; ok {
				return next(c)
			}

			now := time.Now()
			mu.Lock()
			prev, seen := last[sender.ID]
			if seen && now.Sub(prev) < interval {
				mu.Unlock()
				if logger.ShouldSampleDebug() {
					logger.Debug(BuildContext(c), "telegram", "update.ratelimited",
						slog.Int64("user_id", sender.ID),
					)
				}
				return nil
			}
			last[sender.ID] = now
			mu.Unlock()

			return next(c)
		}
	}
}

// AdminOnlyMiddleware restricts a route to the configured admin account.
func AdminOnlyMiddleware(adminID int64) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || adminID == 0 || sender.ID != adminID {
				logger.Warn(BuildContext(c), "telegram", "admin.denied",
					slog.Int64("user_id", senderID(c)),
				)
				return nil
			}
			return next(c)
		}
	}
}

func senderID(c tele.Context) int64 {
	if s := c.Sender(); s != nil {
		return s.ID
	}
	return 0
}
