package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ziplinepark/canopy/internal/domain"
)

// fakeStore is an in-memory BookingStore/PromoStore for service tests.
// It mirrors the conditional-update semantics of the Postgres store.
type fakeStore struct {
	mu sync.Mutex

	bookings  map[uuid.UUID]*domain.BookingDetail
	processed map[string]bool
	packages  map[string]*domain.Package
	addons    map[string]*domain.Addon
	promos    map[string]*domain.Promo

	createErr error
	statusErr error

	// beforeUpdateStatus runs once inside the next UpdateStatus call,
	// before the condition check. Simulates a concurrent writer.
	beforeUpdateStatus func(*domain.BookingDetail)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings:  make(map[uuid.UUID]*domain.BookingDetail),
		processed: make(map[string]bool),
		packages:  make(map[string]*domain.Package),
		addons:    make(map[string]*domain.Addon),
		promos:    make(map[string]*domain.Promo),
	}
}

func (f *fakeStore) CreateBooking(_ context.Context, d *domain.BookingDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *d
	f.bookings[d.Booking.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) GetByRef(_ context.Context, ref string) (*domain.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.bookings {
		if d.Booking.Ref == ref {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrBookingNotFound
}

func (f *fakeStore) GetByIntent(_ context.Context, intentID string) (*domain.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.bookings {
		if d.Booking.PaymentIntentID == intentID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrBookingNotFound
}

func (f *fakeStore) SetPaymentIntent(_ context.Context, id uuid.UUID, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.bookings[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	if d.Booking.PaymentIntentID != "" && d.Booking.PaymentIntentID != intentID {
		return domain.ErrIntentMismatch
	}
	d.Booking.PaymentIntentID = intentID
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, to domain.Status, allowedFrom ...domain.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return false, f.statusErr
	}
	d, ok := f.bookings[id]
	if !ok {
		return false, nil
	}
	if f.beforeUpdateStatus != nil {
		hook := f.beforeUpdateStatus
		f.beforeUpdateStatus = nil
		hook(d)
	}
	for _, from := range allowedFrom {
		if d.Booking.Status == from {
			d.Booking.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) MarkEventProcessed(_ context.Context, eventID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processed[eventID] {
		return false, nil
	}
	f.processed[eventID] = true
	return true, nil
}

func (f *fakeStore) ListSyncable(_ context.Context, ids []uuid.UUID) ([]*domain.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.BookingDetail
	for _, d := range f.bookings {
		if d.Booking.Status != domain.StatusConfirmed && d.Booking.Status != domain.StatusCompleted {
			continue
		}
		if len(ids) > 0 {
			found := false
			for _, id := range ids {
				if id == d.Booking.ID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) GetPackage(_ context.Context, packageID string) (*domain.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.packages[packageID]
	if !ok {
		return nil, domain.ErrPackageNotFound
	}
	return p, nil
}

func (f *fakeStore) GetAddon(_ context.Context, addonID string) (*domain.Addon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addons[addonID]
	if !ok {
		return nil, domain.ErrAddonNotFound
	}
	return a, nil
}

// PromoStore

func (f *fakeStore) Resolve(_ context.Context, code string) (*domain.Promo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.promos[code]
	if !ok {
		return nil, domain.ErrPromoNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) IncrementUsage(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.promos[code]
	if !ok {
		return domain.ErrPromoNotFound
	}
	p.UsedCount++
	return nil
}

// fakeNotifier counts notification sends.
type fakeNotifier struct {
	mu            sync.Mutex
	confirmations int
	adminNotices  int
	sendErr       error
}

func (f *fakeNotifier) SendBookingConfirmation(_ context.Context, _ *domain.BookingDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.confirmations++
	return nil
}

func (f *fakeNotifier) SendAdminNotification(_ context.Context, _ *domain.BookingDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.adminNotices++
	return nil
}
