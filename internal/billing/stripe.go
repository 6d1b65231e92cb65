package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Stripe prices THB in satang; the domain works in whole baht.
const minorUnitsPerBaht = 100

// StripeConfig holds configuration for the Stripe provider.
type StripeConfig struct {
	// APIKey is the secret key (sk_test_... or sk_live_...).
	APIKey string

	// WebhookSecret is the signing secret from the Stripe dashboard.
	WebhookSecret string
}

// StripeProvider implements Provider using the Stripe API.
// The API client is constructed here and injected wherever payments are
// needed; there is deliberately no package-level client or global key.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider creates a Stripe-backed billing provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("billing: stripe API key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("billing: stripe webhook secret is required")
	}

	api := &client.API{}
	api.Init(cfg.APIKey, nil)

	return &StripeProvider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreatePaymentIntent creates a Stripe payment intent.
func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	if params.Amount < 1 {
		return nil, ErrAmountTooSmall
	}

	piParams := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: stripe.String(params.IdempotencyKey),
		},
		Amount:   stripe.Int64(params.Amount * minorUnitsPerBaht),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if params.Description != "" {
		piParams.Description = stripe.String(params.Description)
	}
	if params.CustomerEmail != "" {
		piParams.ReceiptEmail = stripe.String(params.CustomerEmail)
	}
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(piParams)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	return fromStripeIntent(pi), nil
}

// GetPaymentIntent retrieves an existing payment intent.
func (s *StripeProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	pi, err := s.api.PaymentIntents.Get(paymentIntentID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrPaymentIntentNotFound
		}
		return nil, fmt.Errorf("stripe: get payment intent: %w", err)
	}

	return fromStripeIntent(pi), nil
}

// ConstructEvent verifies the webhook signature and decodes the event.
func (s *StripeProvider) ConstructEvent(payload []byte, signatureHeader string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return &Event{
		ID:   event.ID,
		Type: string(event.Type),
		Raw:  json.RawMessage(event.Data.Raw),
	}, nil
}

func fromStripeIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount / minorUnitsPerBaht,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
		CreatedAt:    time.Unix(pi.Created, 0),
	}
}
