package bot

import (
	"fmt"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/logger"

	tele "gopkg.in/telebot.v4"
)

// handleReceiptPhoto forwards a payment receipt to the panel and lifts the
// receipt gate on success.
func (b *Bot) handleReceiptPhoto(c tele.Context, wait domain.ReceiptWait, fileID string) error {
	ctx := StoreContext(c, logger.WithOrderID(BuildContext(c), wait.OrderID))
	userID := senderID(c)

	image, err := b.downloadFile(fileID)
	if err != nil {
		logger.Error(ctx, "telegram", "receipt.download",
			slog.String("err", sanitizeErrorMessage(err)),
		)
		return c.Send(msgReceiptFail)
	}

	filename := fmt.Sprintf("receipt_%d.jpg", wait.OrderID)
	if err := b.panel.UploadReceipt(ctx, wait.OrderID, image, filename); err != nil {
		logger.Error(ctx, "telegram", "receipt.upload",
			slog.String("err", sanitizeErrorMessage(err)),
		)
		return c.Send(msgReceiptFail)
	}

	if err := b.store.ClearReceiptWait(userID); err != nil {
		logger.Error(ctx, "telegram", "receipt.wait.clear",
			slog.String("err", err.Error()),
		)
	}
	b.tracker.Resume(wait.OrderID)

	logger.Info(ctx, "telegram", "receipt.uploaded")
	return c.Send(msgReceiptReceived)
}
