// Package onebooking pushes confirmed bookings to the park's external
// booking system. Pushes are best-effort from the caller's perspective:
// the reconciler logs failures and never lets them roll back a booking.
package onebooking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ziplinepark/canopy/internal/domain"
)

// CodeDuplicateBooking is returned by the remote system when the booking
// already exists there. Treated as skipped, never as a failure.
const CodeDuplicateBooking = "DUPLICATE_BOOKING"

// Result is the outcome of a single push.
type Result struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Duplicate reports whether the remote system already had this booking.
func (r *Result) Duplicate() bool {
	return !r.Success && r.Code == CodeDuplicateBooking
}

// Client talks to the OneBooking HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a OneBooking client. Returns nil when baseURL is
// empty, which callers treat as "sync disabled".
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type pushPayload struct {
	Event   string          `json:"event"`
	Booking bookingSnapshot `json:"booking"`
}

type bookingSnapshot struct {
	ID                string          `json:"id"`
	BookingRef        string          `json:"booking_ref"`
	ActivityDate      string          `json:"activity_date"`
	TimeSlot          string          `json:"time_slot"`
	GuestCount        int32           `json:"guest_count"`
	TotalAmount       int64           `json:"total_amount"`
	DiscountAmount    int64           `json:"discount_amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	SpecialRequests   string          `json:"special_requests,omitempty"`
	PaymentIntentID   string          `json:"stripe_payment_intent_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	Package           packageSnapshot `json:"package"`
	Customer          contactSnapshot `json:"customer"`
	TransportType     string          `json:"transport_type"`
	HotelName         string          `json:"hotel_name,omitempty"`
	RoomNumber        string          `json:"room_number,omitempty"`
	NonPlayers        int32           `json:"non_players"`
	PrivatePassengers int32           `json:"private_passengers"`
	TransportCost     int64           `json:"transport_cost"`
	Addons            []addonSnapshot `json:"addons,omitempty"`
}

type packageSnapshot struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type contactSnapshot struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

type addonSnapshot struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
}

// Push sends one booking snapshot to OneBooking.
func (c *Client) Push(ctx context.Context, eventKind string, d *domain.BookingDetail) (*Result, error) {
	payload := pushPayload{
		Event:   eventKind,
		Booking: snapshot(d),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("onebooking: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/bookings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("onebooking: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("onebooking: push %s: %w", d.Booking.Ref, err)
	}
	defer resp.Body.Close()

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("onebooking: decode response (status %d): %w", resp.StatusCode, err)
	}

	c.logger.Debug("onebooking: push result",
		"booking_ref", d.Booking.Ref,
		"success", result.Success,
		"code", result.Code,
	)
	return &result, nil
}

func snapshot(d *domain.BookingDetail) bookingSnapshot {
	b := d.Booking
	snap := bookingSnapshot{
		ID:              b.ID.String(),
		BookingRef:      b.Ref,
		ActivityDate:    b.ActivityDate.Format("2006-01-02"),
		TimeSlot:        b.TimeSlot,
		GuestCount:      b.GuestCount,
		TotalAmount:     b.TotalAmount,
		DiscountAmount:  b.Discount,
		Currency:        b.Currency,
		Status:          string(b.Status),
		SpecialRequests: b.Requests,
		PaymentIntentID: b.PaymentIntentID,
		CreatedAt:       b.CreatedAt,
		Package: packageSnapshot{
			Name:  b.PackageName,
			Price: b.PackagePrice,
		},
		Customer: contactSnapshot{
			Name:        d.Customer.FirstName + " " + d.Customer.LastName,
			Email:       d.Customer.Email,
			Phone:       d.Customer.Phone,
			CountryCode: d.Customer.CountryCode,
		},
		TransportType:     string(d.Transport.Mode),
		HotelName:         d.Transport.HotelName,
		RoomNumber:        d.Transport.RoomNumber,
		NonPlayers:        d.Transport.NonPlayers,
		PrivatePassengers: d.Transport.PrivatePassengers,
		TransportCost:     d.Transport.Cost,
	}
	for _, a := range d.Addons {
		snap.Addons = append(snap.Addons, addonSnapshot{
			Name:      a.Name,
			UnitPrice: a.UnitPrice,
			Quantity:  a.Quantity,
		})
	}
	return snap
}
