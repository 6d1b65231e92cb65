package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziplinepark/canopy/internal/billing"
	"github.com/ziplinepark/canopy/internal/domain"
	"github.com/ziplinepark/canopy/internal/pricing"
)

func newTestService(store *fakeStore, provider billing.Provider) *BookingService {
	svc := NewBookingService(store, store, provider, nil, testLogger(), "thb")
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func seedCatalog(store *fakeStore) {
	store.packages["zipline-18"] = &domain.Package{ID: "zipline-18", Name: "Zipline 18 Platforms", Price: 1500, Active: true}
	store.packages["retired"] = &domain.Package{ID: "retired", Name: "Old Course", Price: 900, Active: false}
	store.addons["photo-package"] = &domain.Addon{ID: "photo-package", Name: "Photo Package", Price: 300, Active: true}
}

func baseParams() CreateBookingParams {
	return CreateBookingParams{
		PackageID:    "zipline-18",
		ActivityDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		TimeSlot:     "08:00",
		GuestCount:   2,
		Customer: domain.Customer{
			FirstName: "Mali",
			LastName:  "Srisai",
			Email:     "mali@example.com",
		},
		Transport: pricing.TransportSelection{Mode: domain.TransportNone},
	}
}

func TestCreateBookingRoundTrip(t *testing.T) {
	store := newFakeStore()
	seedCatalog(store)
	provider := billing.NewMockProvider()
	svc := newTestService(store, provider)
	ctx := context.Background()

	result, err := svc.CreateBooking(ctx, baseParams())
	require.NoError(t, err)

	assert.NotEmpty(t, result.BookingRef)
	assert.NotEmpty(t, result.ClientSecret)
	assert.Equal(t, int64(3000), result.TotalAmount)

	// The persisted booking matches what the pricing engine computes for
	// the same selection.
	breakdown, err := pricing.Compute(pricing.Selection{
		PackagePrice: 1500,
		GuestCount:   2,
		Transport:    pricing.TransportSelection{Mode: domain.TransportNone},
	})
	require.NoError(t, err)

	d, err := store.GetByRef(ctx, result.BookingRef)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, d.Booking.Status)
	assert.Equal(t, breakdown.Total, d.Booking.TotalAmount)
	assert.NotEmpty(t, d.Booking.PaymentIntentID)
}

func TestCreateBookingUsesBookingIDAsIdempotencyKey(t *testing.T) {
	store := newFakeStore()
	seedCatalog(store)
	provider := billing.NewMockProvider()
	var gotKey string
	provider.CreatePaymentIntentFunc = func(_ context.Context, params billing.CreatePaymentIntentParams) (*billing.PaymentIntent, error) {
		gotKey = params.IdempotencyKey
		return &billing.PaymentIntent{ID: "pi_test", ClientSecret: "pi_test_secret", Amount: params.Amount}, nil
	}
	svc := newTestService(store, provider)

	result, err := svc.CreateBooking(context.Background(), baseParams())
	require.NoError(t, err)
	assert.Equal(t, result.BookingID.String(), gotKey)
}

func TestCreateBookingGatewayFailureLeavesPendingBooking(t *testing.T) {
	store := newFakeStore()
	seedCatalog(store)
	provider := billing.NewMockProvider()
	provider.CreatePaymentIntentFunc = func(_ context.Context, _ billing.CreatePaymentIntentParams) (*billing.PaymentIntent, error) {
		return nil, assert.AnError
	}
	svc := newTestService(store, provider)
	ctx := context.Background()

	result, err := svc.CreateBooking(ctx, baseParams())
	require.Error(t, err)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))

	// The error comes with the identifiers the client needs to resume.
	require.NotNil(t, result)
	assert.NotEmpty(t, result.BookingRef)
	assert.Empty(t, result.ClientSecret)

	// The booking survived and has no intent: a retry can attach one.
	d, err := store.GetByID(ctx, result.BookingID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, d.Booking.Status)
	assert.Empty(t, d.Booking.PaymentIntentID)

	provider.CreatePaymentIntentFunc = nil
	intent, err := svc.EnsurePaymentIntent(ctx, result.BookingID)
	require.NoError(t, err)
	assert.NotEmpty(t, intent.ClientSecret)
}

func TestEnsurePaymentIntentReturnsExistingIntent(t *testing.T) {
	store := newFakeStore()
	seedCatalog(store)
	provider := billing.NewMockProvider()
	svc := newTestService(store, provider)
	ctx := context.Background()

	result, err := svc.CreateBooking(ctx, baseParams())
	require.NoError(t, err)

	created := len(provider.PaymentIntents)
	require.Equal(t, 1, created)

	// Double-click and retry paths call this again.
	_, err = svc.EnsurePaymentIntent(ctx, result.BookingID)
	require.NoError(t, err)
	_, err = svc.EnsurePaymentIntent(ctx, result.BookingID)
	require.NoError(t, err)

	assert.Equal(t, 1, len(provider.PaymentIntents), "no second intent may be created")
}

func TestCreateBookingValidation(t *testing.T) {
	store := newFakeStore()
	seedCatalog(store)
	store.promos["SAVE10"] = &domain.Promo{Code: "SAVE10", Type: domain.DiscountPercentage, Value: 10, Active: true}
	svc := newTestService(store, billing.NewMockProvider())
	ctx := context.Background()

	tests := []struct {
		name     string
		mutate   func(*CreateBookingParams)
		wantCode string
	}{
		{
			name:     "unknown package",
			mutate:   func(p *CreateBookingParams) { p.PackageID = "nope" },
			wantCode: domain.ENOTFOUND,
		},
		{
			name:     "inactive package",
			mutate:   func(p *CreateBookingParams) { p.PackageID = "retired" },
			wantCode: domain.EINVALID,
		},
		{
			name:     "unknown promo code",
			mutate:   func(p *CreateBookingParams) { p.PromoCode = "NOPE" },
			wantCode: domain.ENOTFOUND,
		},
		{
			name:     "unknown add-on",
			mutate:   func(p *CreateBookingParams) { p.Addons = []AddonRequest{{AddonID: "jetpack", Quantity: 1}} },
			wantCode: domain.ENOTFOUND,
		},
		{
			name: "duplicate add-on lines",
			mutate: func(p *CreateBookingParams) {
				p.Addons = []AddonRequest{
					{AddonID: "photo-package", Quantity: 1},
					{AddonID: "photo-package", Quantity: 2},
				}
			},
			wantCode: domain.EINVALID,
		},
		{
			name: "shared pickup without hotel",
			mutate: func(p *CreateBookingParams) {
				p.Transport = pricing.TransportSelection{Mode: domain.TransportShared, NonPlayers: 1}
			},
			wantCode: domain.EINVALID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := baseParams()
			tt.mutate(&params)

			_, err := svc.CreateBooking(ctx, params)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
		})
	}

	assert.Empty(t, store.bookings, "no booking may be persisted on validation failure")
}

func TestCreateBookingSnapshotsPromoAndAddons(t *testing.T) {
	store := newFakeStore()
	seedCatalog(store)
	store.promos["SAVE10"] = &domain.Promo{Code: "SAVE10", Type: domain.DiscountPercentage, Value: 10, Active: true}
	svc := newTestService(store, billing.NewMockProvider())
	ctx := context.Background()

	params := baseParams()
	params.PromoCode = "SAVE10"
	params.Addons = []AddonRequest{{AddonID: "photo-package", Quantity: 2}}

	result, err := svc.CreateBooking(ctx, params)
	require.NoError(t, err)

	// base 3000 + addons 600, 10% off 3600 = 360
	assert.Equal(t, int64(360), result.Discount)
	assert.Equal(t, int64(3240), result.TotalAmount)

	d, err := store.GetByRef(ctx, result.BookingRef)
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", d.Booking.PromoCode)
	assert.Equal(t, domain.DiscountPercentage, d.Booking.PromoType)
	assert.Equal(t, int64(10), d.Booking.PromoValue)
	require.Len(t, d.Addons, 1)
	assert.Equal(t, int64(300), d.Addons[0].UnitPrice, "unit price comes from the catalog")
}

func TestCreateBookingDefaultsPrivatePassengersToGuests(t *testing.T) {
	store := newFakeStore()
	seedCatalog(store)
	svc := newTestService(store, billing.NewMockProvider())
	ctx := context.Background()

	params := baseParams()
	params.Transport = pricing.TransportSelection{
		Mode:      domain.TransportPrivate,
		HotelName: "Rainforest Lodge",
	}

	result, err := svc.CreateBooking(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, int64(5500), result.TotalAmount)

	d, err := store.GetByRef(ctx, result.BookingRef)
	require.NoError(t, err)
	assert.Equal(t, int32(2), d.Transport.PrivatePassengers)
	assert.Equal(t, int64(2500), d.Transport.Cost)
}

func TestGetBookingRequiresIntentProof(t *testing.T) {
	store := newFakeStore()
	seedCatalog(store)
	svc := newTestService(store, billing.NewMockProvider())
	ctx := context.Background()

	result, err := svc.CreateBooking(ctx, baseParams())
	require.NoError(t, err)

	d, err := store.GetByRef(ctx, result.BookingRef)
	require.NoError(t, err)

	got, err := svc.GetBooking(ctx, result.BookingRef, d.Booking.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, result.BookingRef, got.Booking.Ref)

	_, err = svc.GetBooking(ctx, result.BookingRef, "")
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))

	_, err = svc.GetBooking(ctx, result.BookingRef, "pi_wrong")
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))

	_, err = svc.GetBooking(ctx, "ZP-20990101-XXXX", "pi_wrong")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestBulkSyncWithoutClientIsPreconditionError(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, billing.NewMockProvider())

	_, err := svc.BulkSync(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.EPRECONDITION, domain.ErrorCode(err))
}

func TestGenerateBookingRefFormat(t *testing.T) {
	now := time.Date(2025, 1, 29, 10, 0, 0, 0, time.UTC)
	ref, err := generateBookingRef(now)
	require.NoError(t, err)
	assert.Regexp(t, `^ZP-20250129-[A-Z2-9]{4}$`, ref)
}
