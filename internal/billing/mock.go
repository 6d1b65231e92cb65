package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockProvider is an in-memory Provider for tests. By default it mints
// intents into the PaymentIntents map; set the *Func fields to script
// failures or fixed responses for a single scenario.
type MockProvider struct {
	// Per-method overrides. When nil, the default in-memory path runs.
	CreatePaymentIntentFunc func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)
	GetPaymentIntentFunc    func(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)
	ConstructEventFunc      func(payload []byte, signatureHeader string) (*Event, error)

	// PaymentIntents holds every intent created through the default path,
	// keyed by id.
	PaymentIntents map[string]*PaymentIntent

	// CallLog records one entry per provider call, in order.
	CallLog []string
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		PaymentIntents: make(map[string]*PaymentIntent),
		CallLog:        []string{},
	}
}

// CreatePaymentIntent creates a mock payment intent.
func (m *MockProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreatePaymentIntent(%d, %s)", params.Amount, params.Currency))

	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, params)
	}

	// No override: mint an intent waiting for a payment method.
	pi := &PaymentIntent{
		ID:           "pi_" + uuid.New().String(),
		ClientSecret: "pi_" + uuid.New().String() + "_secret_" + uuid.New().String(),
		Amount:       params.Amount,
		Currency:     params.Currency,
		Status:       "requires_payment_method",
		Metadata:     params.Metadata,
		CreatedAt:    time.Now(),
	}

	m.PaymentIntents[pi.ID] = pi
	return pi, nil
}

// GetPaymentIntent retrieves a mock payment intent.
func (m *MockProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetPaymentIntent(%s)", paymentIntentID))

	if m.GetPaymentIntentFunc != nil {
		return m.GetPaymentIntentFunc(ctx, paymentIntentID)
	}

	pi, exists := m.PaymentIntents[paymentIntentID]
	if !exists {
		return nil, ErrPaymentIntentNotFound
	}

	return pi, nil
}

// ConstructEvent verifies a mock webhook payload.
func (m *MockProvider) ConstructEvent(payload []byte, signatureHeader string) (*Event, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("ConstructEvent(%d bytes)", len(payload)))

	if m.ConstructEventFunc != nil {
		return m.ConstructEventFunc(payload, signatureHeader)
	}

	if signatureHeader == "" {
		return nil, ErrInvalidSignature
	}

	return &Event{ID: "evt_" + uuid.New().String(), Type: "unknown", Raw: payload}, nil
}
