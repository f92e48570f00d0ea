package bot

import (
	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/logger"
	"github.com/parnamyadak/partsbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

// handleStart resets any open conversation and shows the role menu.
func (b *Bot) handleStart(c tele.Context) error {
	ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "start"))
	userID := senderID(c)

	b.sessions.Clear(userID)

	if _, waiting := b.receiptWaitFor(userID); waiting {
		return c.Send(msgReceiptOnly)
	}

	user := b.resolveUser(ctx, userID)
	if err := c.Send(msgGreeting); err != nil {
		return err
	}
	return c.Send(msgMenuPrompt, MenuFor(user.State))
}

// handleText routes free text. Precedence: receipt gate, then the open
// conversation, then menu buttons.
func (b *Bot) handleText(c tele.Context) error {
	userID := senderID(c)
	text := c.Text()

	if _, waiting := b.receiptWaitFor(userID); waiting {
		StoreContext(c, logger.WithHandler(BuildContext(c), "receipt.gate"))
		return c.Send(msgReceiptOnly)
	}

	if reg, ok := b.sessions.Registration(userID); ok {
		StoreContext(c, logger.WithHandler(BuildContext(c), "registration.text"))
		return b.handleRegistrationText(c, reg, text)
	}
	if order, ok := b.sessions.Order(userID); ok {
		StoreContext(c, logger.WithHandler(BuildContext(c), "order.text"))
		return b.handleOrderText(c, order, text)
	}

	return b.handleMenuText(c, text)
}

// handleMenuText matches text against the reply keyboard labels.
func (b *Bot) handleMenuText(c tele.Context, text string) error {
	ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "menu"))
	userID := senderID(c)

	switch text {
	case btnRegisterMechanic:
		return b.startRegistration(c, domain.RoleMechanic)
	case btnRegisterCustomer:
		return b.startRegistration(c, domain.RoleCustomer)
	case btnRegisterAgain:
		return b.startReRegistration(c)
	case btnRegistrationInfo:
		return b.handleRegistrationInfo(c)
	case btnNewOrder:
		return b.startOrder(c)
	case btnMyOrders:
		return b.handleMyOrders(c)
	case btnSupport:
		return c.Send(msgSupport)
	default:
		user := b.resolveUser(ctx, userID)
		return c.Send(msgUnknown, MenuFor(user.State))
	}
}

// handlePhoto routes photos. The receipt gate wins over any conversation.
func (b *Bot) handlePhoto(c tele.Context) error {
	userID := senderID(c)
	fileID := photoFileID(c)
	if fileID == "" {
		return nil
	}

	if wait, waiting := b.receiptWaitFor(userID); waiting {
		StoreContext(c, logger.WithHandler(BuildContext(c), "receipt.photo"))
		return b.handleReceiptPhoto(c, wait, fileID)
	}

	if reg, ok := b.sessions.Registration(userID); ok {
		if reg.Step == session.StepLicense {
			StoreContext(c, logger.WithHandler(BuildContext(c), "registration.photo"))
			return b.handleLicensePhoto(c, reg, fileID)
		}
		return c.Send(msgUnknown)
	}
	if order, ok := b.sessions.Order(userID); ok {
		if order.Step == session.OrderStepAwaitPhoto {
			StoreContext(c, logger.WithHandler(BuildContext(c), "order.photo"))
			return b.handleItemPhoto(c, order, fileID)
		}
		return c.Send(msgUnknown)
	}

	ctx := BuildContext(c)
	user := b.resolveUser(ctx, userID)
	return c.Send(msgUnknown, MenuFor(user.State))
}

// handleDocument rejects documents while a receipt is awaited; the panel
// expects receipt uploads as photos.
func (b *Bot) handleDocument(c tele.Context) error {
	userID := senderID(c)
	if _, waiting := b.receiptWaitFor(userID); waiting {
		StoreContext(c, logger.WithHandler(BuildContext(c), "receipt.gate"))
		return c.Send(msgReceiptOnly)
	}
	if b.sessions.Active(userID) {
		return c.Send(msgUnknown)
	}
	return nil
}

func photoFileID(c tele.Context) string {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return ""
	}
	return msg.Photo.FileID
}
