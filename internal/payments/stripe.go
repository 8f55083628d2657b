package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"

	"wedhub/internal/logging"
	"wedhub/internal/models"
)

const (
	metadataPaymentID = "payment_id"
	metadataInvoiceID = "invoice_id"
)

// zero-decimal currencies are charged in whole units
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

type Stripe struct {
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	stripe.Key = secretKey
	return &Stripe{webhookSecret: webhookSecret}
}

// MinorUnits converts amount into the smallest currency unit.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimal[strings.ToUpper(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func FromMinorUnits(v int64, currency string) decimal.Decimal {
	if zeroDecimal[strings.ToUpper(currency)] {
		return decimal.NewFromInt(v)
	}
	return decimal.New(v, -2)
}

func (s *Stripe) CreateIntent(ctx context.Context, p *models.Payment) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(p.Amount, p.Currency)),
		Currency: stripe.String(strings.ToLower(p.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataPaymentID, p.ID.String())
	params.AddMetadata(metadataInvoiceID, p.InvoiceID.String())
	params.SetIdempotencyKey("payment-" + p.ID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return &Intent{Provider: models.ProviderStripe, Ref: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (s *Stripe) ParseWebhook(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}
	out := &Event{ID: event.ID, Type: string(event.Type), Provider: models.ProviderStripe}

	switch event.Type {
	case stripe.EventTypePaymentIntentProcessing,
		stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("parse payment intent: %w", err)
		}
		out.Ref = pi.ID
		switch event.Type {
		case stripe.EventTypePaymentIntentProcessing:
			out.Status = models.PaymentProcessing
		case stripe.EventTypePaymentIntentSucceeded:
			out.Status = models.PaymentSucceeded
		case stripe.EventTypePaymentIntentPaymentFailed:
			out.Status = models.PaymentFailed
			if pi.LastPaymentError != nil {
				out.FailureReason = pi.LastPaymentError.Msg
			}
		case stripe.EventTypePaymentIntentCanceled:
			out.Status = models.PaymentCancelled
			out.FailureReason = string(pi.CancellationReason)
		}
	case stripe.EventTypeChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("parse charge: %w", err)
		}
		if ch.PaymentIntent != nil {
			out.Ref = ch.PaymentIntent.ID
		}
		refunded := FromMinorUnits(ch.AmountRefunded, string(ch.Currency))
		out.RefundAmount = &refunded
		if ch.Refunded {
			out.Status = models.PaymentRefunded
		} else {
			out.Status = models.PaymentPartiallyRefunded
		}
	default:
		logging.Logger.Infof("[stripe][webhook] unhandled event type %s", event.Type)
	}
	return out, nil
}
