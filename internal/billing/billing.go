// Package billing is the narrow boundary to the payment processor. The
// rest of the system only needs "create an intent for amount X tied to
// booking Y" and "turn a raw webhook delivery into a verified event".
package billing

import (
	"context"
	"encoding/json"
	"time"
)

// Provider defines the interface for payment processing.
type Provider interface {
	// CreatePaymentIntent creates a payment intent and returns its client
	// secret for frontend confirmation. Callers must pass an idempotency
	// key (the booking id) so a retried call never mints a second intent.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent.
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)

	// ConstructEvent verifies a raw webhook payload against its signature
	// header and returns the decoded event. Unverifiable payloads return
	// ErrInvalidSignature and must not touch any state.
	ConstructEvent(payload []byte, signatureHeader string) (*Event, error)
}

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// Amount in whole THB. The Stripe implementation converts to satang.
	Amount int64

	// Currency code (ISO 4217), e.g. "thb".
	Currency string

	// CustomerEmail prefills the payment sheet and receipt address.
	CustomerEmail string

	// Description appears on the customer's statement and in the dashboard.
	Description string

	// Metadata must always include booking_id and booking_ref so webhook
	// events can be correlated back to the booking.
	Metadata map[string]string

	// IdempotencyKey prevents duplicate payment intents. Use the booking id.
	IdempotencyKey string
}

// PaymentIntent represents a payment intent.
type PaymentIntent struct {
	// ID is the processor's intent id (pi_...).
	ID string

	// ClientSecret is used by Stripe.js on the frontend to confirm payment.
	ClientSecret string

	// Amount in whole THB.
	Amount int64

	Currency string

	// Status: requires_payment_method, succeeded, canceled, etc.
	Status string

	Metadata map[string]string

	CreatedAt time.Time
}

// Event is a verified webhook event. Raw holds the event object payload
// for the caller to decode based on Type.
type Event struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

// Event types the reconciler consumes.
const (
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventPaymentFailed     = "payment_intent.payment_failed"
	EventChargeRefunded    = "charge.refunded"
	EventCheckoutCompleted = "checkout.session.completed"
)
