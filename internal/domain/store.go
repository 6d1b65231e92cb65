package domain

import (
	"context"

	"github.com/google/uuid"
)

// BookingStore is durable storage for booking aggregates.
// Implementations must provide the atomicity guarantees documented per
// method; all coordination between concurrent webhook deliveries happens
// here, never through in-process locks.
type BookingStore interface {
	// CreateBooking inserts the booking with its customer, transport and
	// add-on lines in a single transaction. Either the whole aggregate
	// exists afterwards or none of it does.
	CreateBooking(ctx context.Context, detail *BookingDetail) error

	// GetByID loads the full aggregate, or ErrBookingNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*BookingDetail, error)

	// GetByRef loads the full aggregate by booking ref, or ErrBookingNotFound.
	GetByRef(ctx context.Context, ref string) (*BookingDetail, error)

	// GetByIntent loads the full aggregate by payment intent id, or
	// ErrBookingNotFound.
	GetByIntent(ctx context.Context, intentID string) (*BookingDetail, error)

	// SetPaymentIntent records the payment intent for a booking.
	// A no-op when the stored value already equals intentID; returns
	// ErrIntentMismatch when a different intent is already recorded, since
	// that indicates a correlation bug that must not be papered over.
	SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error

	// UpdateStatus moves the booking to status `to` if its current status is
	// one of `allowedFrom`, as a single conditional UPDATE (never
	// read-modify-write). Returns whether the transition was applied; false
	// with a nil error means the precondition did not hold.
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status, allowedFrom ...Status) (bool, error)

	// MarkEventProcessed records a payment event id, first writer wins.
	// Returns true when this call was the first to record the id.
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)

	// ListSyncable returns confirmed and completed bookings for backfill to
	// the external booking system. When ids is empty all syncable bookings
	// are returned, newest first.
	ListSyncable(ctx context.Context, ids []uuid.UUID) ([]*BookingDetail, error)

	// GetPackage resolves a bookable package, or ErrPackageNotFound.
	GetPackage(ctx context.Context, packageID string) (*Package, error)

	// GetAddon resolves a catalog add-on, or ErrAddonNotFound.
	GetAddon(ctx context.Context, addonID string) (*Addon, error)
}

// PromoStore resolves and redeems promo codes.
type PromoStore interface {
	// Resolve returns the promo for a code, or ErrPromoNotFound.
	Resolve(ctx context.Context, code string) (*Promo, error)

	// IncrementUsage bumps the redemption counter for a code. Called once
	// per booking on first confirmation.
	IncrementUsage(ctx context.Context, code string) error
}
