package billing

import "errors"

var (
	// ErrInvalidSignature indicates a webhook payload failed verification.
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")

	// ErrPaymentIntentNotFound indicates the intent id is unknown to the
	// processor.
	ErrPaymentIntentNotFound = errors.New("billing: payment intent not found")

	// ErrAmountTooSmall indicates the amount is below the processor minimum.
	ErrAmountTooSmall = errors.New("billing: amount below processor minimum")
)
