package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"wedhub/internal/models"
)

var ErrWebhookSignature = errors.New("webhook signature verification failed")

// Intent is what a provider hands back when a payment is opened.
type Intent struct {
	Provider     string
	Ref          string
	ClientSecret string
}

// Event is a provider notification reduced to what the state machine needs.
// Status is empty for events that do not map onto a payment status.
type Event struct {
	ID            string
	Type          string
	Provider      string
	Ref           string
	Status        models.PaymentStatus
	FailureReason string
	RefundAmount  *decimal.Decimal
}

// Gateway opens payments with an external processor and verifies its webhooks.
type Gateway interface {
	CreateIntent(ctx context.Context, p *models.Payment) (*Intent, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// Manual is used when no processor is configured; payments are settled
// through receipts or vendor updates.
type Manual struct{}

func (Manual) CreateIntent(_ context.Context, _ *models.Payment) (*Intent, error) {
	return &Intent{Provider: models.ProviderManual}, nil
}

func (Manual) ParseWebhook(_ []byte, _ string) (*Event, error) {
	return nil, ErrWebhookSignature
}
