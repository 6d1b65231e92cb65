package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziplinepark/canopy/internal/domain"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		want Breakdown
	}{
		{
			name: "package only",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport:    TransportSelection{Mode: domain.TransportNone},
			},
			want: Breakdown{BaseSubtotal: 3000, Total: 3000},
		},
		{
			name: "shared pickup priced per non-player",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport: TransportSelection{
					Mode:       domain.TransportShared,
					HotelName:  "Rainforest Lodge",
					NonPlayers: 2,
				},
			},
			want: Breakdown{BaseSubtotal: 3000, TransportCost: 600, Total: 3600},
		},
		{
			name: "shared pickup with no non-players is free",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport: TransportSelection{
					Mode:      domain.TransportShared,
					HotelName: "Rainforest Lodge",
				},
			},
			want: Breakdown{BaseSubtotal: 3000, Total: 3000},
		},
		{
			name: "private transfer is a flat price",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport: TransportSelection{
					Mode:              domain.TransportPrivate,
					HotelName:         "Rainforest Lodge",
					PrivatePassengers: 2,
				},
			},
			want: Breakdown{BaseSubtotal: 3000, TransportCost: 2500, Total: 5500},
		},
		{
			name: "private transfer price does not scale with passengers",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   4,
				Transport: TransportSelection{
					Mode:              domain.TransportPrivate,
					HotelName:         "Rainforest Lodge",
					PrivatePassengers: 10,
				},
			},
			want: Breakdown{BaseSubtotal: 6000, TransportCost: 2500, Total: 8500},
		},
		{
			name: "add-ons included in subtotal",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport:    TransportSelection{Mode: domain.TransportNone},
				Addons: []AddonSelection{
					{AddonID: "photo-package", UnitPrice: 300, Quantity: 2},
					{AddonID: "gopro-rental", UnitPrice: 500, Quantity: 1},
				},
			},
			want: Breakdown{BaseSubtotal: 3000, AddonsSubtotal: 1100, Total: 4100},
		},
		{
			name: "percentage promo",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport:    TransportSelection{Mode: domain.TransportNone},
				Promo:        &domain.Promo{Code: "SAVE10", Type: domain.DiscountPercentage, Value: 10, Active: true},
			},
			want: Breakdown{BaseSubtotal: 3000, Discount: 300, Total: 2700},
		},
		{
			name: "promo never discounts transport",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport: TransportSelection{
					Mode:       domain.TransportShared,
					HotelName:  "Rainforest Lodge",
					NonPlayers: 2,
				},
				Promo: &domain.Promo{Code: "SAVE10", Type: domain.DiscountPercentage, Value: 10, Active: true},
			},
			// Discount is 10% of 3000, not of 3600.
			want: Breakdown{BaseSubtotal: 3000, TransportCost: 600, Discount: 300, Total: 3300},
		},
		{
			name: "percentage promo rounds half up",
			sel: Selection{
				PackagePrice: 1250,
				GuestCount:   1,
				Transport:    TransportSelection{Mode: domain.TransportNone},
				Promo:        &domain.Promo{Code: "SAVE15", Type: domain.DiscountPercentage, Value: 15, Active: true},
			},
			// 15% of 1250 = 187.5, rounds to 188.
			want: Breakdown{BaseSubtotal: 1250, Discount: 188, Total: 1062},
		},
		{
			name: "fixed promo clamps to the discountable subtotal",
			sel: Selection{
				PackagePrice: 500,
				GuestCount:   1,
				Transport: TransportSelection{
					Mode:       domain.TransportShared,
					HotelName:  "Rainforest Lodge",
					NonPlayers: 1,
				},
				Promo: &domain.Promo{Code: "BIGOFF", Type: domain.DiscountFixed, Value: 2000, Active: true},
			},
			// Discount clamps at 500; transport still owed in full.
			want: Breakdown{BaseSubtotal: 500, TransportCost: 300, Discount: 500, Total: 300},
		},
		{
			name: "fixed promo below subtotal applies in full",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport:    TransportSelection{Mode: domain.TransportNone},
				Promo:        &domain.Promo{Code: "OFF500", Type: domain.DiscountFixed, Value: 500, Active: true},
			},
			want: Breakdown{BaseSubtotal: 3000, Discount: 500, Total: 2500},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestComputeValidation(t *testing.T) {
	tests := []struct {
		name    string
		sel     Selection
		wantMsg string
	}{
		{
			name:    "zero guests",
			sel:     Selection{PackagePrice: 1500, GuestCount: 0},
			wantMsg: "guest count",
		},
		{
			name: "shared pickup requires hotel",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport:    TransportSelection{Mode: domain.TransportShared},
			},
			wantMsg: "hotel name",
		},
		{
			name: "private transfer requires hotel",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport:    TransportSelection{Mode: domain.TransportPrivate, PrivatePassengers: 2},
			},
			wantMsg: "hotel name",
		},
		{
			name: "private transfer must seat all guests",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   4,
				Transport: TransportSelection{
					Mode:              domain.TransportPrivate,
					HotelName:         "Rainforest Lodge",
					PrivatePassengers: 2,
				},
			},
			wantMsg: "seat every guest",
		},
		{
			name: "private transfer over capacity",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport: TransportSelection{
					Mode:              domain.TransportPrivate,
					HotelName:         "Rainforest Lodge",
					PrivatePassengers: 11,
				},
			},
			wantMsg: "at most 10",
		},
		{
			name: "unknown transport mode",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport:    TransportSelection{Mode: "helicopter"},
			},
			wantMsg: "unknown transport mode",
		},
		{
			name: "add-on quantity must be positive",
			sel: Selection{
				PackagePrice: 1500,
				GuestCount:   2,
				Transport:    TransportSelection{Mode: domain.TransportNone},
				Addons:       []AddonSelection{{AddonID: "photo-package", UnitPrice: 300, Quantity: 0}},
			},
			wantMsg: "quantity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.sel)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestComputeTotalNeverNegative(t *testing.T) {
	got, err := Compute(Selection{
		PackagePrice: 100,
		GuestCount:   1,
		Transport:    TransportSelection{Mode: domain.TransportNone},
		Promo:        &domain.Promo{Code: "FREE", Type: domain.DiscountFixed, Value: 99999, Active: true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Discount)
	assert.Equal(t, int64(0), got.Total)
}

func TestValidatePromo(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)
	maxUses := int32(5)

	tests := []struct {
		name    string
		promo   *domain.Promo
		wantErr string
	}{
		{
			name:  "nil promo is fine",
			promo: nil,
		},
		{
			name:  "active promo within window",
			promo: &domain.Promo{Code: "OK", Type: domain.DiscountPercentage, Value: 10, Active: true, StartsAt: &past, ExpiresAt: &future},
		},
		{
			name:    "inactive",
			promo:   &domain.Promo{Code: "OFF", Type: domain.DiscountPercentage, Value: 10, Active: false},
			wantErr: "not active",
		},
		{
			name:    "not started yet",
			promo:   &domain.Promo{Code: "SOON", Type: domain.DiscountPercentage, Value: 10, Active: true, StartsAt: &future},
			wantErr: "not active yet",
		},
		{
			name:    "expired",
			promo:   &domain.Promo{Code: "OLD", Type: domain.DiscountPercentage, Value: 10, Active: true, ExpiresAt: &past},
			wantErr: "expired",
		},
		{
			name:    "fully redeemed",
			promo:   &domain.Promo{Code: "GONE", Type: domain.DiscountFixed, Value: 100, Active: true, MaxUses: &maxUses, UsedCount: 5},
			wantErr: "fully redeemed",
		},
		{
			name:  "unlimited usage",
			promo: &domain.Promo{Code: "EVER", Type: domain.DiscountFixed, Value: 100, Active: true, UsedCount: 100000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePromo(tt.promo, now)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
