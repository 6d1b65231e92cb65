package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload produces a valid Stripe-Signature header for the payload.
func signPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func webhookPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_test_1",
		"type":        "payment_intent.succeeded",
		"api_version": stripe.APIVersion,
		"data": map[string]any{
			"object": map[string]any{
				"id": "pi_test_1",
				"metadata": map[string]string{
					"booking_id":  "5f0f1f9a-0000-0000-0000-000000000001",
					"booking_ref": "ZP-20250615-A3K9",
				},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func TestConstructEventVerifiesSignature(t *testing.T) {
	provider, err := NewStripeProvider(StripeConfig{APIKey: "sk_test_123", WebhookSecret: testWebhookSecret})
	require.NoError(t, err)

	payload := webhookPayload(t)
	header := signPayload(payload, testWebhookSecret, time.Now())

	event, err := provider.ConstructEvent(payload, header)
	require.NoError(t, err)

	assert.Equal(t, "evt_test_1", event.ID)
	assert.Equal(t, EventPaymentSucceeded, event.Type)

	var object struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(event.Raw, &object))
	assert.Equal(t, "pi_test_1", object.ID)
	assert.Equal(t, "ZP-20250615-A3K9", object.Metadata["booking_ref"])
}

func TestConstructEventRejectsForgedSignature(t *testing.T) {
	provider, err := NewStripeProvider(StripeConfig{APIKey: "sk_test_123", WebhookSecret: testWebhookSecret})
	require.NoError(t, err)

	payload := webhookPayload(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "empty header", header: ""},
		{name: "garbage header", header: "t=1,v1=deadbeef"},
		{name: "wrong secret", header: signPayload(payload, "whsec_other", time.Now())},
		{name: "stale timestamp", header: signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := provider.ConstructEvent(payload, tt.header)
			assert.Nil(t, event)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestConstructEventRejectsTamperedPayload(t *testing.T) {
	provider, err := NewStripeProvider(StripeConfig{APIKey: "sk_test_123", WebhookSecret: testWebhookSecret})
	require.NoError(t, err)

	payload := webhookPayload(t)
	header := signPayload(payload, testWebhookSecret, time.Now())

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = 'X'

	_, err = provider.ConstructEvent(tampered, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCreatePaymentIntentRejectsZeroAmount(t *testing.T) {
	provider, err := NewStripeProvider(StripeConfig{APIKey: "sk_test_123", WebhookSecret: testWebhookSecret})
	require.NoError(t, err)

	_, err = provider.CreatePaymentIntent(context.Background(), CreatePaymentIntentParams{
		Amount:   0,
		Currency: "thb",
	})
	assert.ErrorIs(t, err, ErrAmountTooSmall)
}

func TestNewStripeProviderValidatesConfig(t *testing.T) {
	_, err := NewStripeProvider(StripeConfig{WebhookSecret: testWebhookSecret})
	assert.Error(t, err)

	_, err = NewStripeProvider(StripeConfig{APIKey: "sk_test_123"})
	assert.Error(t, err)
}
