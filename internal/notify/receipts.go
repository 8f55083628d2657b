package notify

import (
	"context"
	"fmt"
	"html"

	"wedhub/internal/models"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) (*SendSMSResponse, error)
}

// ReceiptNotifier pings the vendor on Telegram when a receipt arrives and
// texts the payer once it has been reviewed.
type ReceiptNotifier struct {
	Telegram *Telegram
	SMS      SMSSender
	AppName  string
}

func (n *ReceiptNotifier) ReceiptSubmitted(_ context.Context, vendor *models.Vendor, r *models.PaymentReceipt) error {
	if n.Telegram == nil || vendor == nil {
		return nil
	}
	text := fmt.Sprintf(
		"🧾 <b>New payment receipt</b>\n%s\nNumber: <code>%s</code>\nProvider: %s\nAmount: %s %s\nPhone: %s",
		html.EscapeString(vendor.BusinessName),
		html.EscapeString(r.ReceiptNumber),
		html.EscapeString(r.PaymentProvider),
		r.Amount.StringFixed(2), r.Currency,
		html.EscapeString(r.PhoneNumber),
	)
	return n.Telegram.SendMessage(vendor.TelegramChat, text)
}

func (n *ReceiptNotifier) ReceiptReviewed(ctx context.Context, r *models.PaymentReceipt) error {
	if n.SMS == nil || r.PhoneNumber == "" {
		return nil
	}
	var text string
	switch r.Status {
	case models.ReceiptVerified:
		text = fmt.Sprintf("%s: your payment %s (%s %s) was confirmed.", n.AppName, r.ReceiptNumber, r.Amount.StringFixed(2), r.Currency)
	case models.ReceiptRejected:
		text = fmt.Sprintf("%s: your receipt %s was rejected. Please contact the vendor.", n.AppName, r.ReceiptNumber)
	default:
		return nil
	}
	if _, err := n.SMS.SendSMS(ctx, r.PhoneNumber, text); err != nil {
		return err
	}
	return nil
}
