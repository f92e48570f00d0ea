package bot

import (
	tele "gopkg.in/telebot.v4"
)

// ReplyButtons builds a reply keyboard from rows of button labels.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, labels := range rows {
		row := make(tele.Row, 0, len(labels))
		for _, label := range labels {
			row = append(row, rm.Text(label))
		}
		keyboard = append(keyboard, row)
	}
	rm.Reply(keyboard...)
	return rm
}

// InlineBtn builds a single inline button with callback data.
func InlineBtn(text, unique, data string) tele.Btn {
	return tele.Btn{Text: text, Unique: unique, Data: data}
}

// InlineButtonsRows builds an inline keyboard from rows of buttons.
func InlineButtonsRows(rows ...[]tele.Btn) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, btns := range rows {
		row := make(tele.Row, 0, len(btns))
		for _, b := range btns {
			row = append(row, b)
		}
		keyboard = append(keyboard, row)
	}
	rm.Inline(keyboard...)
	return rm
}

// RemoveKeyboard hides any visible reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}
