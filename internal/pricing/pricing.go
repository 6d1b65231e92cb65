// Package pricing computes the canonical price of a booking selection.
// Compute is pure: same selection in, same breakdown out, no I/O. The
// server always re-prices here before persisting or charging; client-side
// totals are treated as hints only.
package pricing

import (
	"time"

	"github.com/ziplinepark/canopy/internal/domain"
)

// Transport pricing, whole THB.
const (
	PrivateTransferPrice = 2500
	NonPlayerPrice       = 300
	MaxPrivatePassengers = 10
)

// TransportSelection is the customer's pickup choice.
type TransportSelection struct {
	Mode              domain.TransportMode
	HotelName         string
	RoomNumber        string
	NonPlayers        int32
	PrivatePassengers int32
}

// AddonSelection is one add-on line with its catalog unit price.
type AddonSelection struct {
	AddonID   string
	Name      string
	UnitPrice int64
	Quantity  int32
}

// Selection is everything Compute needs. PackagePrice and addon unit
// prices come from the catalog, never from the client. Promo, when
// present, must already have been validated with ValidatePromo.
type Selection struct {
	PackagePrice int64
	GuestCount   int32
	Transport    TransportSelection
	Addons       []AddonSelection
	Promo        *domain.Promo
}

// Breakdown is the priced result. Every field is a non-negative whole THB
// amount.
type Breakdown struct {
	BaseSubtotal   int64
	TransportCost  int64
	AddonsSubtotal int64
	Discount       int64
	Total          int64
}

// Compute validates the selection and prices it.
//
// The promo discount applies to package + add-ons only; transport is never
// discounted. This mirrors the storefront's historical behavior and is
// deliberate, not incidental.
func Compute(sel Selection) (*Breakdown, error) {
	if sel.GuestCount < 1 {
		return nil, domain.Invalid("pricing.compute", "guest count must be at least 1")
	}
	if sel.PackagePrice < 0 {
		return nil, domain.Invalid("pricing.compute", "package price must not be negative")
	}

	transportCost, err := transportCost(sel)
	if err != nil {
		return nil, err
	}

	baseSubtotal := sel.PackagePrice * int64(sel.GuestCount)

	var addonsSubtotal int64
	for _, a := range sel.Addons {
		if a.Quantity < 1 {
			return nil, domain.Invalid("pricing.compute", "add-on quantity must be at least 1")
		}
		if a.UnitPrice < 0 {
			return nil, domain.Invalid("pricing.compute", "add-on unit price must not be negative")
		}
		addonsSubtotal += a.UnitPrice * int64(a.Quantity)
	}

	preDiscount := baseSubtotal + addonsSubtotal
	discount := discountAmount(sel.Promo, preDiscount)

	total := preDiscount + transportCost - discount
	if total < 0 {
		total = 0
	}

	return &Breakdown{
		BaseSubtotal:   baseSubtotal,
		TransportCost:  transportCost,
		AddonsSubtotal: addonsSubtotal,
		Discount:       discount,
		Total:          total,
	}, nil
}

func transportCost(sel Selection) (int64, error) {
	t := sel.Transport
	switch t.Mode {
	case domain.TransportNone:
		return 0, nil

	case domain.TransportShared:
		if t.HotelName == "" {
			return 0, domain.Invalid("pricing.compute", "hotel name is required for shared pickup")
		}
		if t.NonPlayers < 0 {
			return 0, domain.Invalid("pricing.compute", "non-player count must not be negative")
		}
		return int64(t.NonPlayers) * NonPlayerPrice, nil

	case domain.TransportPrivate:
		if t.HotelName == "" {
			return 0, domain.Invalid("pricing.compute", "hotel name is required for private transfer")
		}
		if t.PrivatePassengers < sel.GuestCount {
			return 0, domain.Invalid("pricing.compute", "private transfer must seat every guest")
		}
		if t.PrivatePassengers > MaxPrivatePassengers {
			return 0, domain.Errorf(domain.EINVALID, "pricing.compute",
				"private transfer seats at most %d passengers", MaxPrivatePassengers)
		}
		// Flat price regardless of passenger count.
		return PrivateTransferPrice, nil

	default:
		return 0, domain.Errorf(domain.EINVALID, "pricing.compute", "unknown transport mode: %s", t.Mode)
	}
}

// discountAmount computes the promo discount against the pre-discount
// subtotal. Percentage discounts round half-up; fixed discounts clamp so
// the discount never exceeds what it applies to.
func discountAmount(promo *domain.Promo, preDiscount int64) int64 {
	if promo == nil {
		return 0
	}

	switch promo.Type {
	case domain.DiscountPercentage:
		return (preDiscount*promo.Value + 50) / 100
	case domain.DiscountFixed:
		if promo.Value > preDiscount {
			return preDiscount
		}
		return promo.Value
	default:
		return 0
	}
}

// ValidatePromo checks that a resolved promo code can still be redeemed at
// the given time. Kept separate from Compute so pricing itself stays free
// of clock reads.
func ValidatePromo(promo *domain.Promo, at time.Time) error {
	if promo == nil {
		return nil
	}
	if !promo.Active {
		return domain.Invalid("pricing.promo", "promo code is not active")
	}
	if promo.StartsAt != nil && at.Before(*promo.StartsAt) {
		return domain.Invalid("pricing.promo", "promo code is not active yet")
	}
	if promo.ExpiresAt != nil && at.After(*promo.ExpiresAt) {
		return domain.Invalid("pricing.promo", "promo code has expired")
	}
	if promo.UsageRemaining() == 0 {
		return domain.Invalid("pricing.promo", "promo code has been fully redeemed")
	}
	if promo.Value < 0 {
		return domain.Invalid("pricing.promo", "promo discount value must not be negative")
	}
	return nil
}
