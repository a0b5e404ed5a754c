package email

import (
	"fmt"
	"strings"

	"github.com/swiftcartapp/swiftcart/internal/models"
)

// OrderConfirmation renders the post-checkout confirmation email.
func OrderConfirmation(to string, order *models.Order) *Email {
	var lines strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&lines, "  %dx %s — %s\n", item.Quantity, item.Name, formatCents(int64(item.Quantity)*item.UnitPriceCents))
	}

	paymentNote := "Your payment has been received."
	if order.PaymentStatus == models.PaymentPending {
		paymentNote = "You will pay on delivery."
	}

	text := fmt.Sprintf(`Thanks for your order!

Order %s

%s
Subtotal: %s
Shipping: %s
Tax: %s
Discount: -%s
Total: %s

%s
We'll let you know as soon as it ships.
`,
		order.ID,
		lines.String(),
		formatCents(order.Totals.SubtotalCents),
		formatCents(order.Totals.ShippingCents),
		formatCents(order.Totals.TaxCents),
		formatCents(order.Totals.DiscountCents),
		formatCents(order.Totals.TotalCents),
		paymentNote,
	)

	return &Email{
		To:      to,
		Subject: fmt.Sprintf("Order confirmed — %s", formatCents(order.Totals.TotalCents)),
		Text:    text,
	}
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
