package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/parnamyadak/partsbot/internal/domain"
)

// FormatToman renders an amount with thousands separators.
func FormatToman(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// OrderLines renders one price line per order item.
func OrderLines(order domain.Order) string {
	var b strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&b, "🔹 %s\n", item.ProductName)
		fmt.Fprintf(&b, "   %d × %s = %s تومان\n",
			item.Quantity, FormatToman(item.UnitPrice), FormatToman(item.TotalPrice))
	}
	return b.String()
}
