package bot

import (
	"github.com/parnamyadak/partsbot/internal/domain"

	tele "gopkg.in/telebot.v4"
)

// MenuFor returns the reply keyboard matching a user's registration state.
func MenuFor(state domain.UserState) *tele.ReplyMarkup {
	switch state {
	case domain.UserStateApproved:
		return ReplyButtons(
			[]string{btnNewOrder, btnMyOrders},
			[]string{btnSupport},
		)
	case domain.UserStatePending:
		return ReplyButtons(
			[]string{btnRegistrationInfo},
			[]string{btnSupport},
		)
	case domain.UserStateRejected:
		return ReplyButtons(
			[]string{btnRegisterAgain},
			[]string{btnSupport},
		)
	default:
		return ReplyButtons(
			[]string{btnRegisterMechanic},
			[]string{btnRegisterCustomer},
		)
	}
}

func photoChoiceKeyboard() *tele.ReplyMarkup {
	return InlineButtonsRows([]tele.Btn{
		InlineBtn("✅ بله", cbPhotoYes, ""),
		InlineBtn("❌ خیر", cbPhotoNo, ""),
	})
}

func itemReviewKeyboard() *tele.ReplyMarkup {
	return InlineButtonsRows(
		[]tele.Btn{InlineBtn("➕ افزودن قطعه دیگر", cbAddItem, "")},
		[]tele.Btn{InlineBtn("✅ اتمام و مشاهده سفارش", cbFinishOrder, "")},
	)
}

func finalConfirmKeyboard() *tele.ReplyMarkup {
	return InlineButtonsRows([]tele.Btn{
		InlineBtn("✅ تایید نهایی", cbFinalConfirm, ""),
		InlineBtn("❌ انصراف", cbFinalCancel, ""),
	})
}

func orderDecisionKeyboard(orderID string) *tele.ReplyMarkup {
	return InlineButtonsRows([]tele.Btn{
		InlineBtn("✅ تایید سفارش", cbOrderConfirm, orderID),
		InlineBtn("❌ لغو سفارش", cbOrderCancel, orderID),
	})
}

func paymentDecisionKeyboard(orderID string) *tele.ReplyMarkup {
	return InlineButtonsRows(
		[]tele.Btn{InlineBtn("✅ تایید و پرداخت", cbPayConfirm, orderID)},
		[]tele.Btn{InlineBtn("❌ لغو سفارش", cbPayCancel, orderID)},
	)
}
