package domain

import "time"

// Item is one order line captured during the conversation flow.
type Item struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price,omitempty"`
	TotalPrice  int64  `json:"total_price,omitempty"`
	// PhotoFileID is the Telegram file id of the optional item photo.
	PhotoFileID string `json:"-"`
}

// Complete reports whether the item can be included in a submission.
func (i Item) Complete() bool {
	return i.ProductName != "" && i.Quantity > 0
}

// Order is the panel's view of a submitted order.
type Order struct {
	ID         int64       `json:"id"`
	TelegramID int64       `json:"telegram_id"`
	Status     OrderStatus `json:"-"`
	Items      []Item      `json:"items"`
	TotalPrice int64       `json:"total_price,omitempty"`
	CreatedAt  time.Time   `json:"created_at,omitempty"`
}

// PaymentDetails carries the card the user must pay to.
type PaymentDetails struct {
	CardNumber string `json:"card_number"`
	CardHolder string `json:"card_holder"`
	Bank       string `json:"bank"`
	Total      int64  `json:"total"`
}

// ReceiptWait marks that the next photo from a user is a payment receipt
// for a specific order. Persisted so a restart does not lose the gate.
type ReceiptWait struct {
	TelegramID int64     `json:"telegram_id" db:"telegram_id"`
	OrderID    int64     `json:"order_id" db:"order_id"`
	ArmedAt    time.Time `json:"armed_at" db:"armed_at"`
}
