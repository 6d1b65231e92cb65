// Package service holds the application logic: building priced bookings,
// attaching payment intents, and reconciling payment events into booking
// state. Handlers stay thin; everything that matters happens here.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziplinepark/canopy/internal/billing"
	"github.com/ziplinepark/canopy/internal/domain"
	"github.com/ziplinepark/canopy/internal/onebooking"
	"github.com/ziplinepark/canopy/internal/pricing"
	"github.com/ziplinepark/canopy/internal/telemetry"
)

// refAlphabet avoids ambiguous characters (0/O, 1/I) in booking refs.
const refAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateBookingRef generates a booking reference like ZP-20250129-A3K9.
// The random suffix comes from crypto/rand; uniqueness is ultimately
// enforced by the database constraint on booking_ref.
func generateBookingRef(now time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	for i := range b {
		b[i] = refAlphabet[int(b[i])%len(refAlphabet)]
	}
	return fmt.Sprintf("ZP-%s-%s", now.UTC().Format("20060102"), string(b)), nil
}

// BookingService builds bookings and manages their payment intents.
type BookingService struct {
	store    domain.BookingStore
	promos   domain.PromoStore
	billing  billing.Provider
	sync     *onebooking.Client // nil when sync is disabled
	logger   *slog.Logger
	currency string

	// Overridable for deterministic tests.
	now    func() time.Time
	newRef func(time.Time) (string, error)
}

// NewBookingService creates a booking service.
func NewBookingService(
	store domain.BookingStore,
	promos domain.PromoStore,
	provider billing.Provider,
	sync *onebooking.Client,
	logger *slog.Logger,
	currency string,
) *BookingService {
	return &BookingService{
		store:    store,
		promos:   promos,
		billing:  provider,
		sync:     sync,
		logger:   logger,
		currency: currency,
		now:      time.Now,
		newRef:   generateBookingRef,
	}
}

// AddonRequest is one requested add-on line; the unit price is resolved
// from the catalog, never taken from the client.
type AddonRequest struct {
	AddonID  string
	Quantity int32
}

// CreateBookingParams is the validated input for CreateBooking.
type CreateBookingParams struct {
	PackageID    string
	ActivityDate time.Time
	TimeSlot     string
	GuestCount   int32
	Customer     domain.Customer
	Transport    pricing.TransportSelection
	Addons       []AddonRequest
	PromoCode    string
	Requests     string
}

// CreateBookingResult is returned to the frontend to drive payment.
type CreateBookingResult struct {
	BookingID    uuid.UUID
	BookingRef   string
	TotalAmount  int64
	Discount     int64
	Currency     string
	ClientSecret string
}

// CreateBooking re-prices the selection server-side, persists the booking
// as pending, and attaches a payment intent. The booking stays pending and
// retriable if the payment gateway call fails; in that case the result is
// returned alongside the error, carrying the booking id and ref the caller
// needs to retry via EnsurePaymentIntent without creating a duplicate.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (*CreateBookingResult, error) {
	const op = "booking.create"

	pkg, err := s.store.GetPackage(ctx, params.PackageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return nil, domain.Invalid(op, "package is not available for booking")
	}

	var promo *domain.Promo
	if params.PromoCode != "" {
		promo, err = s.promos.Resolve(ctx, params.PromoCode)
		if err != nil {
			return nil, err
		}
		if err := pricing.ValidatePromo(promo, s.now()); err != nil {
			return nil, err
		}
	}

	addons, err := s.resolveAddons(ctx, params.Addons)
	if err != nil {
		return nil, err
	}

	// Private transfers default to one seat per guest when the client
	// does not say otherwise.
	if params.Transport.Mode == domain.TransportPrivate && params.Transport.PrivatePassengers == 0 {
		params.Transport.PrivatePassengers = params.GuestCount
	}

	breakdown, err := pricing.Compute(pricing.Selection{
		PackagePrice: pkg.Price,
		GuestCount:   params.GuestCount,
		Transport:    params.Transport,
		Addons:       addons,
		Promo:        promo,
	})
	if err != nil {
		return nil, err
	}

	ref, err := s.newRef(s.now())
	if err != nil {
		return nil, domain.Internal(err, op, "failed to generate booking reference")
	}

	detail := &domain.BookingDetail{
		Booking: domain.Booking{
			ID:           uuid.New(),
			Ref:          ref,
			PackageID:    pkg.ID,
			PackageName:  pkg.Name,
			PackagePrice: pkg.Price,
			ActivityDate: params.ActivityDate,
			TimeSlot:     params.TimeSlot,
			GuestCount:   params.GuestCount,
			Status:       domain.StatusPending,
			TotalAmount:  breakdown.Total,
			Discount:     breakdown.Discount,
			Currency:     s.currency,
			Requests:     strings.TrimSpace(params.Requests),
		},
		Customer: params.Customer,
		Transport: domain.Transport{
			Mode:              params.Transport.Mode,
			HotelName:         params.Transport.HotelName,
			RoomNumber:        params.Transport.RoomNumber,
			NonPlayers:        params.Transport.NonPlayers,
			PrivatePassengers: params.Transport.PrivatePassengers,
			Cost:              breakdown.TransportCost,
		},
	}
	if promo != nil {
		detail.Booking.PromoCode = promo.Code
		detail.Booking.PromoType = promo.Type
		detail.Booking.PromoValue = promo.Value
	}
	for _, a := range addons {
		detail.Addons = append(detail.Addons, domain.AddonLine{
			AddonID:   a.AddonID,
			Name:      a.Name,
			UnitPrice: a.UnitPrice,
			Quantity:  a.Quantity,
		})
	}

	if err := s.store.CreateBooking(ctx, detail); err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		"booking_ref", ref,
		"package_id", pkg.ID,
		"guest_count", params.GuestCount,
		"total_amount", breakdown.Total,
	)

	if telemetry.Business != nil {
		telemetry.Business.BookingsCreated.WithLabelValues(pkg.ID).Inc()
		telemetry.Business.BookingValue.WithLabelValues(pkg.ID).Observe(float64(breakdown.Total))
	}

	intent, err := s.EnsurePaymentIntent(ctx, detail.Booking.ID)
	if err != nil {
		// The booking is persisted and retriable. Return its identifiers
		// alongside the error so the client can resume via
		// EnsurePaymentIntent instead of re-submitting a duplicate.
		s.logger.Error("payment intent creation failed after booking persisted",
			"booking_ref", ref, "error", err)
		return &CreateBookingResult{
			BookingID:   detail.Booking.ID,
			BookingRef:  ref,
			TotalAmount: breakdown.Total,
			Discount:    breakdown.Discount,
			Currency:    s.currency,
		}, err
	}

	return &CreateBookingResult{
		BookingID:    detail.Booking.ID,
		BookingRef:   ref,
		TotalAmount:  breakdown.Total,
		Discount:     breakdown.Discount,
		Currency:     s.currency,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (s *BookingService) resolveAddons(ctx context.Context, reqs []AddonRequest) ([]pricing.AddonSelection, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(reqs))
	out := make([]pricing.AddonSelection, 0, len(reqs))
	for _, r := range reqs {
		if seen[r.AddonID] {
			return nil, domain.Invalid("booking.create", fmt.Sprintf("duplicate add-on: %s", r.AddonID))
		}
		seen[r.AddonID] = true

		addon, err := s.store.GetAddon(ctx, r.AddonID)
		if err != nil {
			return nil, err
		}
		if !addon.Active {
			return nil, domain.Invalid("booking.create", fmt.Sprintf("add-on is not available: %s", r.AddonID))
		}
		out = append(out, pricing.AddonSelection{
			AddonID:   addon.ID,
			Name:      addon.Name,
			UnitPrice: addon.Price,
			Quantity:  r.Quantity,
		})
	}
	return out, nil
}

// EnsurePaymentIntent returns the booking's payment intent, creating it on
// first call. The intent is created with the booking id as idempotency key,
// so concurrent or retried calls never mint a second intent for the same
// booking.
func (s *BookingService) EnsurePaymentIntent(ctx context.Context, id uuid.UUID) (*billing.PaymentIntent, error) {
	const op = "booking.payment_intent"

	d, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.Booking.PaymentIntentID != "" {
		return s.billing.GetPaymentIntent(ctx, d.Booking.PaymentIntentID)
	}

	if d.Booking.Status != domain.StatusPending {
		return nil, domain.Conflict(op, "booking is not awaiting payment")
	}

	intent, err := s.billing.CreatePaymentIntent(ctx, billing.CreatePaymentIntentParams{
		Amount:        d.Booking.TotalAmount,
		Currency:      d.Booking.Currency,
		CustomerEmail: d.Customer.Email,
		Description:   fmt.Sprintf("%s - %s", d.Booking.PackageName, d.Booking.Ref),
		Metadata: map[string]string{
			"booking_id":  d.Booking.ID.String(),
			"booking_ref": d.Booking.Ref,
		},
		IdempotencyKey: d.Booking.ID.String(),
	})
	if err != nil {
		return nil, domain.WrapError(err, domain.EPAYMENT, op, "payment gateway rejected the request")
	}

	if err := s.store.SetPaymentIntent(ctx, id, intent.ID); err != nil {
		return nil, err
	}

	return intent, nil
}

// GetBooking looks up a booking by ref for the customer-facing status page.
// The caller must present the booking's payment intent id as proof of
// ownership; refs alone are shareable and not a secret.
func (s *BookingService) GetBooking(ctx context.Context, ref, intentProof string) (*domain.BookingDetail, error) {
	const op = "booking.get"

	d, err := s.store.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	if intentProof == "" || d.Booking.PaymentIntentID == "" || intentProof != d.Booking.PaymentIntentID {
		return nil, domain.Unauthorized(op, "payment reference does not match this booking")
	}

	return d, nil
}

// Sync outcomes for bulk backfill.
const (
	SyncOutcomeSynced  = "synced"
	SyncOutcomeSkipped = "skipped"
	SyncOutcomeFailed  = "failed"
)

// SyncItem is the per-booking outcome of a bulk backfill.
type SyncItem struct {
	BookingRef string `json:"booking_ref"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
}

// SyncReport summarizes a bulk backfill run.
type SyncReport struct {
	Total   int        `json:"total"`
	Synced  int        `json:"synced"`
	Skipped int        `json:"skipped"`
	Failed  int        `json:"failed"`
	Items   []SyncItem `json:"items"`
}

// BulkSync pushes confirmed and completed bookings to the external booking
// system. Failures are per-item: one rejected booking never aborts the
// rest of the batch.
func (s *BookingService) BulkSync(ctx context.Context, ids []uuid.UUID) (*SyncReport, error) {
	const op = "booking.bulk_sync"

	if s.sync == nil {
		return nil, domain.Precondition(op, "external booking sync is not configured")
	}

	details, err := s.store.ListSyncable(ctx, ids)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{Total: len(details)}
	for _, d := range details {
		item := SyncItem{BookingRef: d.Booking.Ref}

		result, err := s.sync.Push(ctx, "bulk_backfill", d)
		switch {
		case err != nil:
			item.Outcome = SyncOutcomeFailed
			item.Error = err.Error()
			report.Failed++
			s.logger.Error("bulk sync push failed", "booking_ref", d.Booking.Ref, "error", err)
			if telemetry.Business != nil {
				telemetry.Business.SyncFailed.WithLabelValues("bulk_backfill").Inc()
			}
		case result.Success:
			item.Outcome = SyncOutcomeSynced
			report.Synced++
			if telemetry.Business != nil {
				telemetry.Business.SyncPushed.WithLabelValues("bulk_backfill").Inc()
			}
		case result.Duplicate():
			item.Outcome = SyncOutcomeSkipped
			report.Skipped++
			if telemetry.Business != nil {
				telemetry.Business.SyncSkipped.WithLabelValues("bulk_backfill").Inc()
			}
		default:
			item.Outcome = SyncOutcomeFailed
			item.Error = result.Error
			report.Failed++
			s.logger.Warn("bulk sync push rejected",
				"booking_ref", d.Booking.Ref, "code", result.Code, "error", result.Error)
			if telemetry.Business != nil {
				telemetry.Business.SyncFailed.WithLabelValues("bulk_backfill").Inc()
			}
		}

		report.Items = append(report.Items, item)
	}

	s.logger.Info("bulk sync finished",
		"total", report.Total, "synced", report.Synced,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}
