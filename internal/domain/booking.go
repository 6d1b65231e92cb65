package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a booking.
// Transitions are driven only by verified payment events, never by UI actions.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// TransportMode describes how guests get to the park.
type TransportMode string

const (
	// TransportNone means guests arrange their own travel.
	TransportNone TransportMode = "none"
	// TransportShared is the pooled hotel pickup, priced per non-player.
	TransportShared TransportMode = "shared"
	// TransportPrivate is a dedicated vehicle at a flat price, capped at
	// MaxPrivatePassengers seats.
	TransportPrivate TransportMode = "private"
)

// DiscountType is how a promo code reduces the discountable subtotal.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Booking is the central aggregate: one paid park visit.
// Amounts are whole THB, no fractional currency anywhere in the domain.
type Booking struct {
	ID           uuid.UUID
	Ref          string // human-shareable external key, immutable once assigned
	PackageID    string
	PackageName  string
	PackagePrice int64
	ActivityDate time.Time
	TimeSlot     string
	GuestCount   int32
	Status       Status
	TotalAmount  int64
	Discount     int64
	Currency     string
	Requests     string // special requests, free text

	// Promo snapshot captured at creation time. Later edits or deletion of
	// the promo code must not change what this booking was charged.
	PromoCode  string
	PromoType  DiscountType
	PromoValue int64

	// PaymentIntentID is set exactly once, after the Stripe intent is
	// created for this booking. Empty until then.
	PaymentIntentID string

	CreatedAt time.Time
}

// Customer is the contact attached to a booking. Exactly one per booking.
type Customer struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	CountryCode string
}

// Transport is the pickup arrangement for a booking.
type Transport struct {
	Mode              TransportMode
	HotelName         string
	RoomNumber        string
	NonPlayers        int32 // shared mode only
	PrivatePassengers int32 // private mode only
	Cost              int64
}

// AddonLine is one add-on purchase on a booking, with the unit price
// snapshotted from the catalog at creation time.
type AddonLine struct {
	AddonID   string
	Name      string
	UnitPrice int64
	Quantity  int32
}

// BookingDetail aggregates a booking with its owned sub-records.
type BookingDetail struct {
	Booking   Booking
	Customer  Customer
	Transport Transport
	Addons    []AddonLine
}

// Package is a bookable adventure package from the catalog.
type Package struct {
	ID     string
	Name   string
	Price  int64
	Active bool
}

// Addon is a purchasable extra from the catalog.
type Addon struct {
	ID     string
	Name   string
	Price  int64
	Active bool
}

// Promo is a resolved promo code as stored in the catalog.
type Promo struct {
	Code      string
	Type      DiscountType
	Value     int64
	Active    bool
	StartsAt  *time.Time
	ExpiresAt *time.Time
	MaxUses   *int32
	UsedCount int32
}

// UsageRemaining reports how many redemptions are left, or -1 for unlimited.
func (p *Promo) UsageRemaining() int32 {
	if p.MaxUses == nil {
		return -1
	}
	remaining := *p.MaxUses - p.UsedCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Booking-related domain errors.
var (
	ErrBookingNotFound = &Error{Code: ENOTFOUND, Message: "Booking not found"}
	ErrPackageNotFound = &Error{Code: ENOTFOUND, Message: "Package not found"}
	ErrPromoNotFound   = &Error{Code: ENOTFOUND, Message: "Promo code not found"}
	ErrAddonNotFound   = &Error{Code: ENOTFOUND, Message: "Add-on not found"}
	ErrIntentMismatch  = &Error{Code: ECONFLICT, Message: "Booking already linked to a different payment intent"}
)
