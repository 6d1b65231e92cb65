package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ziplinepark/canopy/internal/billing"
	"github.com/ziplinepark/canopy/internal/domain"
	"github.com/ziplinepark/canopy/internal/onebooking"
	"github.com/ziplinepark/canopy/internal/telemetry"
)

// Notifier sends booking emails. Implemented by email.Service.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, d *domain.BookingDetail) error
	SendAdminNotification(ctx context.Context, d *domain.BookingDetail) error
}

// Reconciler applies verified payment events to booking state.
//
// All its operations are idempotent: webhook deliveries are at-least-once
// and can arrive duplicated, concurrently, or out of order. The conditional
// status transition is the barrier: it applies exactly once, so duplicate
// event ids and duplicate confirmations under distinct event ids
// (checkout.session.completed and payment_intent.succeeded both confirm)
// both collapse into no-ops. Event ids are recorded in the processed-events
// table only after the transition outcome is known; a handler that fails
// mid-flight leaves the event unconsumed, and the gateway's redelivery
// retries it. Side effects fire only on the transition that actually
// applied.
type Reconciler struct {
	store  domain.BookingStore
	promos domain.PromoStore
	emails Notifier           // nil when email is disabled
	sync   *onebooking.Client // nil when sync is disabled
	logger *slog.Logger
}

// NewReconciler creates a payment event reconciler.
func NewReconciler(
	store domain.BookingStore,
	promos domain.PromoStore,
	emails Notifier,
	sync *onebooking.Client,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		store:  store,
		promos: promos,
		emails: emails,
		sync:   sync,
		logger: logger,
	}
}

// HandlePaymentSucceeded confirms the booking for a successful payment.
// Used for both payment_intent.succeeded and checkout.session.completed,
// which carry distinct event ids but mean the same thing for the booking.
func (r *Reconciler) HandlePaymentSucceeded(ctx context.Context, eventID, eventType string, bookingID uuid.UUID, intentID string) error {
	// Records the intent when the checkout flow reaches us before the
	// booking has one; a no-op when it matches what is already stored.
	if intentID != "" {
		if err := r.store.SetPaymentIntent(ctx, bookingID, intentID); err != nil {
			return err
		}
	}

	// Any error up to here returns before the event id is recorded, so
	// the redelivered event gets a clean retry.
	applied, err := r.store.UpdateStatus(ctx, bookingID, domain.StatusConfirmed, domain.StatusPending)
	if err != nil {
		return err
	}

	if _, err := r.store.MarkEventProcessed(ctx, eventID, eventType); err != nil {
		r.logger.Error("failed to record processed payment event", "event_id", eventID, "error", err)
	}

	if !applied {
		// Already confirmed via the sibling event type, or cancelled by an
		// earlier failure event. Either way there is nothing left to do.
		r.logger.Info("payment event arrived for non-pending booking",
			"event_id", eventID, "booking_id", bookingID)
		return nil
	}

	d, err := r.store.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	r.logger.Info("booking confirmed",
		"booking_ref", d.Booking.Ref,
		"event_id", eventID,
		"total_amount", d.Booking.TotalAmount,
	)

	if telemetry.Business != nil {
		telemetry.Business.PaymentSucceeded.WithLabelValues(eventType).Inc()
		telemetry.Business.RevenueCollected.WithLabelValues(d.Booking.PackageID).Add(float64(d.Booking.TotalAmount))
	}

	r.runConfirmationEffects(ctx, d)
	return nil
}

// runConfirmationEffects fires the once-per-booking side effects. All of
// them are best-effort: the booking is already confirmed and a failed
// email or sync push must not fail the webhook.
func (r *Reconciler) runConfirmationEffects(ctx context.Context, d *domain.BookingDetail) {
	if d.Booking.PromoCode != "" {
		if err := r.promos.IncrementUsage(ctx, d.Booking.PromoCode); err != nil {
			r.logger.Error("failed to increment promo usage",
				"booking_ref", d.Booking.Ref, "promo_code", d.Booking.PromoCode, "error", err)
		}
	}

	if r.emails != nil {
		if err := r.emails.SendBookingConfirmation(ctx, d); err != nil {
			r.logger.Error("failed to send confirmation email",
				"booking_ref", d.Booking.Ref, "error", err)
			if telemetry.Business != nil {
				telemetry.Business.EmailFailed.WithLabelValues("confirmation").Inc()
			}
		} else if telemetry.Business != nil {
			telemetry.Business.EmailSent.WithLabelValues("confirmation").Inc()
		}

		if err := r.emails.SendAdminNotification(ctx, d); err != nil {
			r.logger.Error("failed to send admin notification",
				"booking_ref", d.Booking.Ref, "error", err)
			if telemetry.Business != nil {
				telemetry.Business.EmailFailed.WithLabelValues("admin").Inc()
			}
		} else if telemetry.Business != nil {
			telemetry.Business.EmailSent.WithLabelValues("admin").Inc()
		}
	}

	if r.sync != nil {
		result, err := r.sync.Push(ctx, "booking_confirmed", d)
		switch {
		case err != nil:
			r.logger.Error("failed to push booking to external system",
				"booking_ref", d.Booking.Ref, "error", err)
			if telemetry.Business != nil {
				telemetry.Business.SyncFailed.WithLabelValues("booking_confirmed").Inc()
			}
		case result.Success:
			if telemetry.Business != nil {
				telemetry.Business.SyncPushed.WithLabelValues("booking_confirmed").Inc()
			}
		case result.Duplicate():
			if telemetry.Business != nil {
				telemetry.Business.SyncSkipped.WithLabelValues("booking_confirmed").Inc()
			}
		default:
			r.logger.Warn("external system rejected booking",
				"booking_ref", d.Booking.Ref, "code", result.Code, "error", result.Error)
			if telemetry.Business != nil {
				telemetry.Business.SyncFailed.WithLabelValues("booking_confirmed").Inc()
			}
		}
	}
}

// HandlePaymentFailed cancels a pending booking whose payment failed.
// A booking that already confirmed (the failure event raced a later
// successful attempt and lost) is left untouched.
func (r *Reconciler) HandlePaymentFailed(ctx context.Context, eventID string, bookingID uuid.UUID, reason string) error {
	applied, err := r.store.UpdateStatus(ctx, bookingID, domain.StatusCancelled, domain.StatusPending)
	if err != nil {
		// Event id not yet recorded: redelivery retries the transition.
		return err
	}

	if _, err := r.store.MarkEventProcessed(ctx, eventID, billing.EventPaymentFailed); err != nil {
		r.logger.Error("failed to record processed payment event", "event_id", eventID, "error", err)
	}

	if !applied {
		r.logger.Info("failure event arrived for non-pending booking",
			"event_id", eventID, "booking_id", bookingID)
		return nil
	}

	r.logger.Info("booking cancelled after failed payment",
		"booking_id", bookingID, "event_id", eventID, "reason", reason)

	if telemetry.Business != nil {
		if reason == "" {
			reason = "unknown"
		}
		telemetry.Business.PaymentFailed.WithLabelValues(reason).Inc()
	}
	return nil
}

// HandleChargeRefunded marks a booking refunded. Only confirmed or
// completed bookings can be refunded. A refund that races ahead of its
// confirmation comes back as a precondition failure so the gateway
// redelivers it instead of it vanishing into the dedup table.
func (r *Reconciler) HandleChargeRefunded(ctx context.Context, eventID, intentID string) error {
	const op = "reconciler.refund"

	d, err := r.store.GetByIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			// Refund for an intent we never issued, e.g. a dashboard test
			// charge. Nothing to reconcile.
			r.logger.Warn("refund event for unknown payment intent",
				"event_id", eventID, "intent_id", intentID)
			return nil
		}
		return err
	}

	applied, err := r.store.UpdateStatus(ctx, d.Booking.ID, domain.StatusRefunded,
		domain.StatusConfirmed, domain.StatusCompleted)
	if err != nil {
		return err
	}
	if !applied {
		// Re-read: a concurrent delivery may have refunded the booking
		// between our lookup and the conditional update.
		cur, err := r.store.GetByID(ctx, d.Booking.ID)
		if err != nil {
			return err
		}
		if cur.Booking.Status == domain.StatusRefunded {
			r.logger.Info("skipping refund for already refunded booking",
				"booking_ref", d.Booking.Ref, "event_id", eventID)
			return nil
		}
		return domain.Precondition(op, "booking is not in a refundable status")
	}

	if _, err := r.store.MarkEventProcessed(ctx, eventID, billing.EventChargeRefunded); err != nil {
		r.logger.Error("failed to record processed refund event", "event_id", eventID, "error", err)
	}

	r.logger.Info("booking refunded",
		"booking_ref", d.Booking.Ref, "event_id", eventID, "amount", d.Booking.TotalAmount)

	if telemetry.Business != nil {
		telemetry.Business.RefundsIssued.WithLabelValues(d.Booking.PackageID).Inc()
	}
	return nil
}
