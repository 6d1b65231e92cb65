package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ziplinepark/canopy/internal/billing"
	"github.com/ziplinepark/canopy/internal/domain"
	"github.com/ziplinepark/canopy/internal/telemetry"
)

// maxWebhookBody bounds the raw payload we are willing to verify.
const maxWebhookBody = 1 << 16

type webhookHandlerFunc func(ctx context.Context, event *billing.Event) error

// StripeWebhook handles POST /webhooks/stripe.
//
// Response contract: 400 only when the signature does not verify (the
// payload is untrusted and must never be retried into state); 200 for
// event types we do not consume and for precondition no-ops the gateway
// should redeliver nothing for; 4xx/5xx for processing failures so the
// gateway redelivers.
func (h *Handler) StripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	event, err := h.billing.ConstructEvent(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(event.Type).Inc()
	}

	handle, ok := h.webhookHandlers[event.Type]
	if !ok {
		h.logger.Debug("ignoring unhandled webhook event", "event_type", event.Type)
		return c.NoContent(http.StatusOK)
	}

	start := time.Now()
	err = handle(c.Request().Context(), event)
	if telemetry.Business != nil {
		telemetry.Business.WebhookLatency.WithLabelValues(event.Type).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		h.logger.Error("webhook processing failed",
			"event_id", event.ID, "event_type", event.Type, "error", err)
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(event.Type, domain.ErrorCode(err)).Inc()
		}
		return h.respondError(c, err)
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(event.Type).Inc()
	}
	return c.NoContent(http.StatusOK)
}

// paymentIntentPayload is the slice of the payment_intent object the
// reconciler needs.
type paymentIntentPayload struct {
	ID               string            `json:"id"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// checkoutSessionPayload is the slice of the checkout.session object the
// reconciler needs.
type checkoutSessionPayload struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

// chargePayload is the slice of the charge object the reconciler needs.
type chargePayload struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
}

func (h *Handler) handlePaymentIntentSucceeded(ctx context.Context, event *billing.Event) error {
	var pi paymentIntentPayload
	if err := decodeEventObject(event, &pi); err != nil {
		return err
	}

	bookingID, ok := h.bookingIDFromMetadata(event, pi.Metadata)
	if !ok {
		return nil
	}

	return h.reconciler.HandlePaymentSucceeded(ctx, event.ID, event.Type, bookingID, pi.ID)
}

func (h *Handler) handleCheckoutCompleted(ctx context.Context, event *billing.Event) error {
	var session checkoutSessionPayload
	if err := decodeEventObject(event, &session); err != nil {
		return err
	}

	bookingID, ok := h.bookingIDFromMetadata(event, session.Metadata)
	if !ok {
		return nil
	}

	return h.reconciler.HandlePaymentSucceeded(ctx, event.ID, event.Type, bookingID, session.PaymentIntent)
}

func (h *Handler) handlePaymentIntentFailed(ctx context.Context, event *billing.Event) error {
	var pi paymentIntentPayload
	if err := decodeEventObject(event, &pi); err != nil {
		return err
	}

	bookingID, ok := h.bookingIDFromMetadata(event, pi.Metadata)
	if !ok {
		return nil
	}

	reason := ""
	if pi.LastPaymentError != nil {
		reason = pi.LastPaymentError.Message
	}

	return h.reconciler.HandlePaymentFailed(ctx, event.ID, bookingID, reason)
}

func (h *Handler) handleChargeRefunded(ctx context.Context, event *billing.Event) error {
	var charge chargePayload
	if err := decodeEventObject(event, &charge); err != nil {
		return err
	}

	if charge.PaymentIntent == "" {
		h.logger.Warn("refund event carries no payment intent", "event_id", event.ID)
		return nil
	}

	return h.reconciler.HandleChargeRefunded(ctx, event.ID, charge.PaymentIntent)
}

func decodeEventObject(event *billing.Event, v any) error {
	if err := json.Unmarshal(event.Raw, v); err != nil {
		return domain.WrapError(err, domain.EINVALID, "webhook.decode", "malformed event payload")
	}
	return nil
}

// bookingIDFromMetadata extracts the booking id the payment intent was
// created with. Events without one belong to some other product sharing
// the Stripe account and are acknowledged untouched.
func (h *Handler) bookingIDFromMetadata(event *billing.Event, metadata map[string]string) (uuid.UUID, bool) {
	raw, ok := metadata["booking_id"]
	if !ok || raw == "" {
		h.logger.Warn("webhook event has no booking metadata",
			"event_id", event.ID, "event_type", event.Type)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		h.logger.Warn("webhook event has malformed booking id",
			"event_id", event.ID, "booking_id", raw)
		return uuid.Nil, false
	}
	return id, true
}
