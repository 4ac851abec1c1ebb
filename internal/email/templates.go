package email

import (
	"fmt"
	"strings"
)

// BuildOrderConfirmationBody builds the HTML body for an order
// confirmation email
func BuildOrderConfirmationBody(orderID string, total float64, items []OrderLine) string {
	var itemsHTML strings.Builder
	for _, item := range items {
		itemsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">$%.2f</td>
			</tr>`,
			item.Title,
			item.Price,
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">Thank you for your order</h1>
	<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
		<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
		<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
	</div>
	<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
		<thead>
			<tr>
				<th style="padding: 12px; border-bottom: 2px solid #333; text-align: left;">Title</th>
				<th style="padding: 12px; border-bottom: 2px solid #333; text-align: right;">Price</th>
			</tr>
		</thead>
		<tbody>%s</tbody>
	</table>
	<p style="font-size: 16px; font-weight: bold; text-align: right;">Total: $%.2f</p>
</body>
</html>`, orderID, itemsHTML.String(), total)
}

// BuildPaymentReceiptBody builds the HTML body for a payment receipt
// email
func BuildPaymentReceiptBody(receiptNumber, billingID string, amount float64, settled bool) string {
	settlement := "This payment partially settles the invoice."
	if settled {
		settlement = "The invoice is now fully settled."
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">Payment received</h1>
	<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
		<p style="margin: 0; font-size: 14px; color: #666;">Receipt number</p>
		<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
	</div>
	<p>We received a payment of <strong>$%.2f</strong> against billing record <code>%s</code>.</p>
	<p>%s</p>
</body>
</html>`, receiptNumber, amount, billingID, settlement)
}
