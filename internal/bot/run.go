// Package bot wires the Telegram surface: update routing, conversation
// handlers and outbound message delivery.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/config"
	"github.com/parnamyadak/partsbot/internal/logger"
	"github.com/parnamyadak/partsbot/internal/notify"
	"github.com/parnamyadak/partsbot/internal/panel"
	"github.com/parnamyadak/partsbot/internal/session"
	"github.com/parnamyadak/partsbot/internal/store"

	tele "gopkg.in/telebot.v4"
)

// OrderTracker follows a submitted order until it settles. The poller
// implements it in long-poll mode; webhook mode runs without one.
type OrderTracker interface {
	Watch(ctx context.Context, telegramID, orderID int64)
	Resume(orderID int64)
}

type nopOrderTracker struct{}

func (nopOrderTracker) Watch(context.Context, int64, int64) {}
func (nopOrderTracker) Resume(int64)                        {}

// Bot is the assembled Telegram bot.
type Bot struct {
	cfg        *config.Config
	tb         *tele.Bot
	panel      *panel.Client
	store      store.Store
	sessions   *session.Manager
	dispatcher *Dispatcher
	tracker    OrderTracker
	notifier   *notify.Notifier
	baseCtx    context.Context
}

// New builds the bot without starting it. The tracker defaults to a no-op
// until SetTracker is called.
func New(cfg *config.Config, client *panel.Client, st store.Store) (*Bot, error) {
	if cfg.Telegram.RunMode == config.RunModeLongpoll {
		deleteWebhook(cfg.Telegram.Token)
	}

	pref := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: buildPoller(cfg),
		OnError: func(err error, c tele.Context) {
			logger.Error(BuildContext(c), "telegram", "bot.error",
				slog.String("err", sanitizeErrorMessage(err)),
			)
		},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &Bot{
		cfg:        cfg,
		tb:         tb,
		panel:      client,
		store:      st,
		sessions:   session.NewManager(),
		dispatcher: NewDispatcher(DispatcherOptions{}),
		tracker:    nopOrderTracker{},
		baseCtx:    context.Background(),
	}, nil
}

// SetTracker installs the order tracker. Call before Run.
func (b *Bot) SetTracker(t OrderTracker) {
	if t != nil {
		b.tracker = t
	}
}

// SetNotifier installs the notifier used for admin decisions. Call before Run.
func (b *Bot) SetNotifier(n *notify.Notifier) {
	b.notifier = n
}

// buildPoller selects the telebot update source per run mode.
func buildPoller(cfg *config.Config) tele.Poller {
	if cfg.Telegram.RunMode == config.RunModeWebhook {
		return &tele.Webhook{
			Listen: fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{
				PublicURL: cfg.Webhook.URL,
			},
		}
	}
	timeout := 10 * time.Second
	if cfg.Telegram.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}

// deleteWebhook clears any webhook registration left by a previous run so
// long polling can receive updates. Best effort.
func deleteWebhook(token string) {
	client := &http.Client{Timeout: 5 * time.Second}
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/deleteWebhook", token)
	form := url.Values{"drop_pending_updates": {"true"}}

	resp, err := client.PostForm(endpoint, form)
	if err != nil {
		logger.Warn(logger.Background(), "telegram", "webhook.delete",
			slog.String("err", sanitizeErrorMessage(err)),
		)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		logger.Warn(logger.Background(), "telegram", "webhook.delete",
			slog.Int("http_code", resp.StatusCode),
		)
	}
}

type middleware struct {
	name string
	use  tele.MiddlewareFunc
}

type route struct {
	endpoint any
	handler  tele.HandlerFunc
}

func (b *Bot) middlewares() []middleware {
	mws := []middleware{
		{name: "recover", use: RecoverMiddleware()},
		{name: "logger", use: LoggerMiddleware()},
	}
	if b.cfg.RateLimit.IntervalMS > 0 {
		mws = append(mws, middleware{
			name: "rate_limit",
			use: RateLimitMiddleware(
				time.Duration(b.cfg.RateLimit.IntervalMS)*time.Millisecond,
				b.cfg.RateLimit.ExcludeUpdates,
			),
		})
	}
	return mws
}

func (b *Bot) routes() []route {
	return []route{
		{endpoint: "/start", handler: b.handleStart},
		{endpoint: tele.OnText, handler: b.handleText},
		{endpoint: tele.OnPhoto, handler: b.handlePhoto},
		{endpoint: tele.OnDocument, handler: b.handleDocument},

		{endpoint: &tele.Btn{Unique: cbPhotoYes}, handler: b.handlePhotoChoice(true)},
		{endpoint: &tele.Btn{Unique: cbPhotoNo}, handler: b.handlePhotoChoice(false)},
		{endpoint: &tele.Btn{Unique: cbAddItem}, handler: b.handleAddItem},
		{endpoint: &tele.Btn{Unique: cbFinishOrder}, handler: b.handleFinishOrder},
		{endpoint: &tele.Btn{Unique: cbFinalConfirm}, handler: b.handleFinalConfirm},
		{endpoint: &tele.Btn{Unique: cbFinalCancel}, handler: b.handleFinalCancel},
		{endpoint: &tele.Btn{Unique: cbOrderConfirm}, handler: b.handleOrderDecision(true)},
		{endpoint: &tele.Btn{Unique: cbOrderCancel}, handler: b.handleOrderDecision(false)},
		{endpoint: &tele.Btn{Unique: cbPayConfirm}, handler: b.handlePaymentDecision(true)},
		{endpoint: &tele.Btn{Unique: cbPayCancel}, handler: b.handlePaymentDecision(false)},
	}
}

// Run registers routes and blocks serving updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	b.baseCtx = ctx

	var mwNames []string
	for _, mw := range b.middlewares() {
		b.tb.Use(mw.use)
		mwNames = append(mwNames, mw.name)
	}
	routes := b.routes()
	for _, r := range routes {
		b.tb.Handle(r.endpoint, r.handler)
	}

	admin := AdminOnlyMiddleware(b.cfg.Telegram.AdminID)
	b.tb.Handle("/approve", b.handleApprove, admin)
	b.tb.Handle("/reject", b.handleReject, admin)

	logger.Info(ctx, "telegram", "bot.start",
		slog.String("mode", b.cfg.Telegram.RunMode),
		slog.String("middlewares", strings.Join(mwNames, ",")),
		slog.Int("routes", len(routes)+2),
	)

	go func() {
		<-ctx.Done()
		b.tb.Stop()
	}()

	b.tb.Start()
	b.dispatcher.Close()
	logger.Info(ctx, "telegram", "bot.stop")
}
