// Package notify turns status changes observed by the poller or pushed by
// the panel into Telegram messages. Both delivery modes share these routines.
package notify

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/logger"
	"github.com/parnamyadak/partsbot/internal/panel"
	"github.com/parnamyadak/partsbot/internal/store"
)

// Messenger delivers user-facing messages. The bot package implements it;
// tests use fakes.
type Messenger interface {
	// SendText sends a plain text message to a user.
	SendText(ctx context.Context, telegramID int64, text string) error
	// SendMainMenu sends text together with the role menu for the user.
	SendMainMenu(ctx context.Context, telegramID int64, text string) error
	// SendOrderDecision sends text with confirm/cancel inline buttons for an order.
	SendOrderDecision(ctx context.Context, telegramID, orderID int64, text string) error
}

// Tracker lets the notifier pause and resume poller tracking of an order.
// Webhook mode supplies a no-op.
type Tracker interface {
	Pause(orderID int64)
	Resume(orderID int64)
}

// NopTracker ignores pause and resume requests.
type NopTracker struct{}

func (NopTracker) Pause(int64)  {}
func (NopTracker) Resume(int64) {}

// Notifier renders and sends status-change messages.
type Notifier struct {
	msg     Messenger
	panel   *panel.Client
	store   store.Store
	tracker Tracker
}

// New builds a Notifier. A nil tracker defaults to NopTracker.
func New(msg Messenger, client *panel.Client, st store.Store, tracker Tracker) *Notifier {
	if tracker == nil {
		tracker = NopTracker{}
	}
	return &Notifier{msg: msg, panel: client, store: st, tracker: tracker}
}

// UserApproved tells a user their registration was accepted and pushes the menu.
func (n *Notifier) UserApproved(ctx context.Context, telegramID int64, commission float64) error {
	text := "🎉 ثبت‌نام شما تایید شد!"
	if commission > 0 {
		text += fmt.Sprintf("\n\n💰 درصد کمیسیون شما: %.1f%%", commission)
	}
	text += "\n\nاکنون می‌توانید سفارش ثبت کنید."
	if err := n.msg.SendText(ctx, telegramID, text); err != nil {
		return err
	}
	return n.msg.SendMainMenu(ctx, telegramID, "منوی اصلی:")
}

// UserRejected tells a user their registration was declined.
func (n *Notifier) UserRejected(ctx context.Context, telegramID int64) error {
	text := "❌ متاسفانه ثبت‌نام شما تایید نشد.\n\n" +
		"می‌توانید با اطلاعات صحیح مجدداً ثبت‌نام کنید یا با پشتیبانی تماس بگیرید."
	if err := n.msg.SendText(ctx, telegramID, text); err != nil {
		return err
	}
	return n.msg.SendMainMenu(ctx, telegramID, "منوی اصلی:")
}

// UserStateChanged routes a registration state transition.
func (n *Notifier) UserStateChanged(ctx context.Context, telegramID int64, state domain.UserState, commission float64) error {
	switch state {
	case domain.UserStateApproved:
		return n.UserApproved(ctx, telegramID, commission)
	case domain.UserStateRejected:
		return n.UserRejected(ctx, telegramID)
	default:
		return nil
	}
}

// OrderStatusChanged routes an order status transition. detail may be nil;
// it is fetched when the message needs prices or payment fields.
func (n *Notifier) OrderStatusChanged(ctx context.Context, telegramID, orderID int64, status domain.OrderStatus, detail *panel.OrderDetail) error {
	ctx = logger.WithOrderID(ctx, orderID)

	switch status {
	case domain.OrderStatusAwaitingUserConfirm:
		return n.promptUserConfirm(ctx, telegramID, orderID, detail)
	case domain.OrderStatusAwaitingPayment:
		return n.promptPayment(ctx, telegramID, orderID, detail)
	case domain.OrderStatusAwaitingPaymentCheck:
		return n.msg.SendText(ctx, telegramID,
			fmt.Sprintf("✅ رسید پرداخت سفارش #%d دریافت شد و در حال بررسی است.", orderID))
	case domain.OrderStatusPaid:
		return n.paidOnce(ctx, telegramID, orderID)
	case domain.OrderStatusCompleted:
		n.clearWait(ctx, telegramID)
		n.tracker.Pause(orderID)
		return n.msg.SendText(ctx, telegramID,
			fmt.Sprintf("🎉 سفارش #%d تکمیل شد. از خرید شما متشکریم!", orderID))
	case domain.OrderStatusCancelled:
		n.clearWait(ctx, telegramID)
		n.tracker.Pause(orderID)
		return n.msg.SendText(ctx, telegramID,
			fmt.Sprintf("❌ سفارش #%d لغو شد.", orderID))
	default:
		return nil
	}
}

// paidOnce sends the payment confirmation at most once per order. The
// poller cycle, the per-order watcher and the push endpoint all land here,
// so the notified-order ledger keeps the message from repeating.
func (n *Notifier) paidOnce(ctx context.Context, telegramID, orderID int64) error {
	notified, err := n.store.OrderNotified(orderID)
	if err != nil {
		return fmt.Errorf("notified ledger: %w", err)
	}
	if notified {
		return nil
	}
	if err := n.PaymentConfirmed(ctx, telegramID, orderID); err != nil {
		return err
	}
	return n.store.MarkOrderNotified(orderID)
}

// clearWait drops any armed receipt gate for the user. Best effort.
func (n *Notifier) clearWait(ctx context.Context, telegramID int64) {
	if err := n.store.ClearReceiptWait(telegramID); err != nil {
		logger.Error(ctx, "poller", "receipt.wait.clear",
			slog.Int64("user_id", telegramID),
			slog.String("err", err.Error()),
		)
	}
}

func (n *Notifier) promptUserConfirm(ctx context.Context, telegramID, orderID int64, detail *panel.OrderDetail) error {
	detail, err := n.ensureDetail(ctx, orderID, detail)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "💰 قیمت‌گذاری سفارش #%d انجام شد:\n\n", orderID)
	b.WriteString(OrderLines(detail.Order))
	fmt.Fprintf(&b, "\n💵 مبلغ کل: %s تومان\n\nآیا سفارش را تایید می‌کنید؟", FormatToman(detail.Order.TotalPrice))
	return n.msg.SendOrderDecision(ctx, telegramID, orderID, b.String())
}

func (n *Notifier) promptPayment(ctx context.Context, telegramID, orderID int64, detail *panel.OrderDetail) error {
	detail, err := n.ensureDetail(ctx, orderID, detail)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💳 سفارش #%d آماده پرداخت است.\n\n", orderID)
	if p := detail.Payment; p != nil {
		fmt.Fprintf(&b, "شماره کارت: %s\n", p.CardNumber)
		if p.CardHolder != "" {
			fmt.Fprintf(&b, "به نام: %s\n", p.CardHolder)
		}
		if p.Bank != "" {
			fmt.Fprintf(&b, "بانک: %s\n", p.Bank)
		}
		fmt.Fprintf(&b, "💵 مبلغ: %s تومان\n", FormatToman(p.Total))
	} else {
		fmt.Fprintf(&b, "💵 مبلغ: %s تومان\n", FormatToman(detail.Order.TotalPrice))
	}
	b.WriteString("\nپس از پرداخت، لطفاً عکس رسید را ارسال کنید.")

	if err := n.msg.SendText(ctx, telegramID, b.String()); err != nil {
		return err
	}

	if err := n.store.SetReceiptWait(domain.ReceiptWait{TelegramID: telegramID, OrderID: orderID}); err != nil {
		logger.Error(ctx, "poller", "receipt.wait.persist",
			slog.String("err", err.Error()),
		)
		return err
	}
	n.tracker.Pause(orderID)
	return nil
}

// PaymentConfirmed tells the user their payment was accepted and pauses
// tracking until the order moves again.
func (n *Notifier) PaymentConfirmed(ctx context.Context, telegramID, orderID int64) error {
	ctx = logger.WithOrderID(ctx, orderID)
	text := fmt.Sprintf("✅ پرداخت سفارش #%d تایید شد. سفارش شما در حال پردازش است.", orderID)
	if err := n.msg.SendText(ctx, telegramID, text); err != nil {
		return err
	}
	n.clearWait(ctx, telegramID)
	n.tracker.Pause(orderID)
	return nil
}

func (n *Notifier) ensureDetail(ctx context.Context, orderID int64, detail *panel.OrderDetail) (*panel.OrderDetail, error) {
	if detail != nil {
		return detail, nil
	}
	return n.panel.Order(ctx, orderID)
}
