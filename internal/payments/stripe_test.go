package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"wedhub/internal/models"
)

const testWebhookSecret = "whsec_test"

func sign(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func event(typ, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":%q,"type":%q,"data":{"object":%s}}`,
		stripe.APIVersion, typ, object))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(10050), MinorUnits(decimal.RequireFromString("100.50"), "usd"))
	assert.Equal(t, int64(1), MinorUnits(decimal.RequireFromString("0.005"), "EUR"))
	assert.Equal(t, int64(1500), MinorUnits(decimal.RequireFromString("1500"), "JPY"))

	assert.True(t, decimal.RequireFromString("100.5").Equal(FromMinorUnits(10050, "USD")))
	assert.True(t, decimal.NewFromInt(1500).Equal(FromMinorUnits(1500, "jpy")))
}

func TestParseWebhook(t *testing.T) {
	s := NewStripe("sk_test_unused", testWebhookSecret)

	payload := event("payment_intent.succeeded", `{"id":"pi_123","object":"payment_intent"}`)
	ev, err := s.ParseWebhook(payload, sign(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "pi_123", ev.Ref)
	assert.Equal(t, models.ProviderStripe, ev.Provider)
	assert.Equal(t, models.PaymentSucceeded, ev.Status)

	payload = event("payment_intent.payment_failed", `{"id":"pi_123","object":"payment_intent","last_payment_error":{"message":"Your card was declined."}}`)
	ev, err = s.ParseWebhook(payload, sign(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, ev.Status)
	assert.Equal(t, "Your card was declined.", ev.FailureReason)

	payload = event("charge.refunded", `{"id":"ch_1","object":"charge","amount_refunded":2500,"currency":"usd","refunded":false,"payment_intent":"pi_123"}`)
	ev, err = s.ParseWebhook(payload, sign(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "pi_123", ev.Ref)
	assert.Equal(t, models.PaymentPartiallyRefunded, ev.Status)
	require.NotNil(t, ev.RefundAmount)
	assert.True(t, decimal.NewFromInt(25).Equal(*ev.RefundAmount))

	payload = event("customer.created", `{"id":"cus_1","object":"customer"}`)
	ev, err = s.ParseWebhook(payload, sign(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Empty(t, ev.Status)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	s := NewStripe("sk_test_unused", testWebhookSecret)
	payload := event("payment_intent.succeeded", `{"id":"pi_123","object":"payment_intent"}`)

	_, err := s.ParseWebhook(payload, sign(payload, "whsec_other"))
	assert.ErrorIs(t, err, ErrWebhookSignature)
	_, err = s.ParseWebhook(payload, "")
	assert.ErrorIs(t, err, ErrWebhookSignature)
}

func TestManualGateway(t *testing.T) {
	intent, err := Manual{}.CreateIntent(context.Background(), &models.Payment{})
	require.NoError(t, err)
	assert.Equal(t, models.ProviderManual, intent.Provider)
	assert.Empty(t, intent.ClientSecret)

	_, err = Manual{}.ParseWebhook([]byte(`{}`), "t=1,v1=00")
	assert.ErrorIs(t, err, ErrWebhookSignature)
}
