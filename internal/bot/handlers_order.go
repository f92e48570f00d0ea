package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/logger"
	"github.com/parnamyadak/partsbot/internal/notify"
	"github.com/parnamyadak/partsbot/internal/panel"
	"github.com/parnamyadak/partsbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

// pendingOrderMessage explains why a new order is blocked by an open one.
func pendingOrderMessage(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusAwaitingUserConfirm:
		return "⏳ سفارش قبلی شما در انتظار تایید قیمت است. ابتدا آن را تایید یا لغو کنید."
	case domain.OrderStatusAwaitingPayment:
		return "💳 سفارش قبلی شما در انتظار پرداخت است. ابتدا پرداخت را انجام دهید."
	case domain.OrderStatusAwaitingPaymentCheck:
		return "🔍 رسید پرداخت سفارش قبلی شما در حال بررسی است. پس از تایید می‌توانید سفارش جدید ثبت کنید."
	default:
		return "📦 سفارش قبلی شما در حال پردازش است. پس از تکمیل می‌توانید سفارش جدید ثبت کنید."
	}
}

func (b *Bot) startOrder(c tele.Context) error {
	ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "order.start"))
	userID := senderID(c)

	user := b.resolveUser(ctx, userID)
	if user.State != domain.UserStateApproved {
		return c.Send(msgNotApproved, MenuFor(user.State))
	}

	// One payment sequence at a time per user.
	orders, err := b.panel.Orders(ctx, panel.OrdersFilter{TelegramID: userID})
	if err != nil {
		logger.Warn(ctx, "telegram", "order.guard",
			slog.String("err", sanitizeErrorMessage(err)),
		)
		if errors.Is(err, panel.ErrPanelUnavailable) {
			return c.Send(msgPanelDown)
		}
	}
	for _, order := range orders {
		if order.Status.PaymentPending() {
			// A priced order can be confirmed or dropped right here.
			if order.Status == domain.OrderStatusAwaitingUserConfirm {
				return c.Send(pendingOrderMessage(order.Status),
					paymentDecisionKeyboard(strconv.FormatInt(order.ID, 10)))
			}
			if err := c.Send(pendingOrderMessage(order.Status)); err != nil {
				return err
			}
			// Re-send the actionable prompt for the blocking order.
			if b.notifier != nil {
				if err := b.notifier.OrderStatusChanged(ctx, userID, order.ID, order.Status, nil); err != nil {
					logger.Warn(ctx, "telegram", "order.guard.prompt",
						slog.Int64("order_id", order.ID),
						slog.String("err", sanitizeErrorMessage(err)),
					)
				}
			}
			return nil
		}
	}

	b.sessions.StartOrder(userID, user.Role)
	logger.Info(ctx, "telegram", "order.start",
		slog.String("role", string(user.Role)),
	)
	return c.Send(msgAskProduct, RemoveKeyboard())
}

func (b *Bot) handleOrderText(c tele.Context, order *session.OrderSession, text string) error {
	switch order.Step {
	case session.OrderStepProduct:
		if err := order.SetProduct(text); err != nil {
			return c.Send(msgAskProduct)
		}
		return c.Send(msgAskQuantity)
	case session.OrderStepQuantity:
		if err := order.SetQuantity(text); err != nil {
			if errors.Is(err, session.ErrBadQuantity) {
				return c.Send(msgBadQuantity)
			}
			return c.Send(msgNotNumber)
		}
		return c.Send(msgAskPhoto, photoChoiceKeyboard())
	case session.OrderStepAwaitPhoto:
		return c.Send(msgSendPhoto)
	case session.OrderStepReview:
		return c.Send(msgItemAdded, itemReviewKeyboard())
	default:
		return c.Send(msgAskPhoto, photoChoiceKeyboard())
	}
}

func (b *Bot) handleItemPhoto(c tele.Context, order *session.OrderSession, fileID string) error {
	if err := order.AttachPhoto(fileID); err != nil {
		return c.Send(msgSendPhoto)
	}
	return c.Send(msgItemAdded, itemReviewKeyboard())
}

func (b *Bot) handlePhotoChoice(want bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		StoreContext(c, logger.WithHandler(BuildContext(c), "order.photo_choice"))
		order, ok := b.sessions.Order(senderID(c))
		if !ok || order.Step != session.OrderStepPhotoChoice {
			return c.Respond()
		}
		order.ChoosePhoto(want)
		if err := c.Respond(); err != nil {
			return err
		}
		if want {
			return c.Send(msgSendPhoto)
		}
		return c.Send(msgItemAdded, itemReviewKeyboard())
	}
}

func (b *Bot) handleAddItem(c tele.Context) error {
	StoreContext(c, logger.WithHandler(BuildContext(c), "order.add_item"))
	order, ok := b.sessions.Order(senderID(c))
	if !ok {
		return c.Respond()
	}
	flushed := order.NextItem()
	if err := c.Respond(); err != nil {
		return err
	}
	if !flushed {
		if err := c.Send(msgItemInvalid); err != nil {
			return err
		}
	}
	return c.Send(msgAskProduct)
}

func (b *Bot) handleFinishOrder(c tele.Context) error {
	StoreContext(c, logger.WithHandler(BuildContext(c), "order.finish"))
	userID := senderID(c)
	order, ok := b.sessions.Order(userID)
	if !ok {
		return c.Respond()
	}
	order.FlushCurrent()
	if err := c.Respond(); err != nil {
		return err
	}

	if len(order.Items) == 0 {
		b.sessions.Clear(userID)
		ctx := BuildContext(c)
		user := b.resolveUser(ctx, userID)
		return c.Send(msgOrderEmpty, MenuFor(user.State))
	}
	return c.Send(orderSummary(order.Items), finalConfirmKeyboard())
}

// orderSummary renders the pre-pricing review of collected items.
func orderSummary(items []domain.Item) string {
	var sb strings.Builder
	sb.WriteString(msgOrderSummaryHead)
	sb.WriteString("\n")
	for i, item := range items {
		fmt.Fprintf(&sb, "\n%d. %s | تعداد: %d", i+1, item.ProductName, item.Quantity)
		if item.PhotoFileID != "" {
			sb.WriteString(" 📷")
		}
	}
	sb.WriteString("\n\nآیا سفارش را ثبت می‌کنید؟")
	return sb.String()
}

func (b *Bot) handleFinalConfirm(c tele.Context) error {
	ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "order.submit"))
	userID := senderID(c)

	order, ok := b.sessions.Order(userID)
	if !ok {
		return c.Respond()
	}
	if err := c.Respond(); err != nil {
		return err
	}

	// Approval can be revoked mid-conversation.
	user := b.resolveUser(ctx, userID)
	if user.State != domain.UserStateApproved {
		b.sessions.Clear(userID)
		return c.Send(msgNotApproved, MenuFor(user.State))
	}

	items := make([]panel.SubmissionItem, 0, len(order.Items))
	for i, item := range order.Items {
		sub := panel.SubmissionItem{ProductName: item.ProductName, Quantity: item.Quantity}
		if item.PhotoFileID != "" {
			photo, err := b.downloadFile(item.PhotoFileID)
			if err != nil {
				logger.Warn(ctx, "telegram", "order.photo.download",
					slog.Int("item", i),
					slog.String("err", sanitizeErrorMessage(err)),
				)
			} else {
				sub.Photo = photo
				sub.PhotoName = fmt.Sprintf("item_%d.jpg", i)
			}
		}
		items = append(items, sub)
	}

	orderID, err := b.panel.CreateOrder(ctx, panel.OrderSubmission{
		TelegramID: userID,
		Role:       order.Role,
		Items:      items,
	})
	if err != nil {
		logger.Error(ctx, "telegram", "order.submit",
			slog.String("err", sanitizeErrorMessage(err)),
		)
		if errors.Is(err, panel.ErrPanelUnavailable) {
			return c.Send(msgPanelDown)
		}
		return c.Send(msgOrderSubmitFail)
	}

	b.sessions.Clear(userID)
	ctx = logger.WithOrderID(ctx, orderID)
	logger.Info(ctx, "telegram", "order.submitted",
		slog.Int("items", len(items)),
	)

	b.tracker.Watch(b.baseCtx, userID, orderID)
	if err := b.panel.NotifyOrderRegistered(ctx, userID, orderID); err != nil {
		logger.Warn(ctx, "telegram", "order.notify",
			slog.String("err", sanitizeErrorMessage(err)),
		)
	}

	text := fmt.Sprintf("✅ سفارش شما با شماره #%d ثبت شد.\n\n"+
		"پس از قیمت‌گذاری به شما اطلاع داده می‌شود.", orderID)
	return c.Send(text, MenuFor(user.State))
}

func (b *Bot) handleFinalCancel(c tele.Context) error {
	ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "order.cancel"))
	userID := senderID(c)
	b.sessions.Clear(userID)
	if err := c.Respond(); err != nil {
		return err
	}
	user := b.resolveUser(ctx, userID)
	return c.Send(msgOrderCancelled, MenuFor(user.State))
}

// handleOrderDecision reacts to the confirm/cancel buttons sent with a
// priced order.
func (b *Bot) handleOrderDecision(confirm bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "order.decision"))
		userID := senderID(c)

		orderID, err := strconv.ParseInt(strings.TrimSpace(c.Data()), 10, 64)
		if err != nil || orderID == 0 {
			return c.Respond()
		}
		ctx = logger.WithOrderID(ctx, orderID)
		if err := c.Respond(); err != nil {
			return err
		}

		if confirm {
			err = b.panel.ConfirmOrder(ctx, orderID, userID)
		} else {
			err = b.panel.CancelOrder(ctx, orderID, userID)
		}
		if err != nil {
			logger.Error(ctx, "telegram", "order.decision",
				slog.Bool("confirm", confirm),
				slog.String("err", sanitizeErrorMessage(err)),
			)
			return c.Send(msgDecisionFail)
		}

		logger.Info(ctx, "telegram", "order.decision",
			slog.Bool("confirm", confirm),
		)
		if confirm {
			b.tracker.Watch(b.baseCtx, userID, orderID)
			return c.Send(msgDecisionSaved)
		}
		b.tracker.Resume(orderID)
		return c.Send(msgDecisionCancel)
	}
}

// handlePaymentDecision reacts to the pay/cancel buttons attached to a
// blocking priced order. Confirm moves the order to awaiting payment on
// the panel; cancel marks it cancelled.
func (b *Bot) handlePaymentDecision(confirm bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "order.payment_decision"))
		userID := senderID(c)

		orderID, err := strconv.ParseInt(strings.TrimSpace(c.Data()), 10, 64)
		if err != nil || orderID == 0 {
			return c.Respond()
		}
		ctx = logger.WithOrderID(ctx, orderID)
		if err := c.Respond(); err != nil {
			return err
		}

		target := domain.OrderStatusAwaitingPayment
		if !confirm {
			target = domain.OrderStatusCancelled
		}
		if err := b.panel.SetOrderStatus(ctx, orderID, target); err != nil {
			logger.Error(ctx, "telegram", "order.payment_decision",
				slog.Bool("confirm", confirm),
				slog.String("err", sanitizeErrorMessage(err)),
			)
			if confirm {
				return c.Send(msgPayConfirmFail)
			}
			return c.Send(msgPayCancelFail)
		}

		logger.Info(ctx, "telegram", "order.payment_decision",
			slog.Bool("confirm", confirm),
		)
		if confirm {
			b.tracker.Watch(b.baseCtx, userID, orderID)
			return c.Send(fmt.Sprintf(msgPayConfirmed, orderID))
		}
		b.tracker.Resume(orderID)
		return c.Send(msgPayCancelled)
	}
}

// handleMyOrders lists the user's most recent orders.
func (b *Bot) handleMyOrders(c tele.Context) error {
	ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "orders.list"))
	userID := senderID(c)

	orders, err := b.panel.Orders(ctx, panel.OrdersFilter{TelegramID: userID, Limit: 10})
	if err != nil {
		logger.Error(ctx, "telegram", "orders.list",
			slog.String("err", sanitizeErrorMessage(err)),
		)
		return c.Send(msgPanelDown)
	}
	if len(orders) == 0 {
		return c.Send(msgNoOrders)
	}

	var sb strings.Builder
	sb.WriteString("📦 سفارشات اخیر شما:\n")
	for _, order := range orders {
		fmt.Fprintf(&sb, "\n🔹 سفارش #%d | %s", order.ID, order.Status.Display())
		if order.TotalPrice > 0 {
			fmt.Fprintf(&sb, " | %s تومان", notify.FormatToman(order.TotalPrice))
		}
	}
	return c.Send(sb.String())
}
