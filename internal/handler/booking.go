package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ziplinepark/canopy/internal/domain"
	"github.com/ziplinepark/canopy/internal/pricing"
	"github.com/ziplinepark/canopy/internal/service"
)

type createBookingRequest struct {
	PackageID       string             `json:"package_id" validate:"required"`
	ActivityDate    string             `json:"activity_date" validate:"required,datetime=2006-01-02"`
	TimeSlot        string             `json:"time_slot" validate:"required,datetime=15:04"`
	GuestCount      int32              `json:"guest_count" validate:"required,min=1"`
	Customer        customerRequest    `json:"customer" validate:"required"`
	Transport       transportRequest   `json:"transport"`
	Addons          []addonLineRequest `json:"addons" validate:"dive"`
	PromoCode       string             `json:"promo_code" validate:"omitempty,max=32"`
	SpecialRequests string             `json:"special_requests" validate:"omitempty,max=1000"`
}

type customerRequest struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	CountryCode string `json:"country_code" validate:"omitempty,max=8"`
}

type transportRequest struct {
	Type              string `json:"type" validate:"omitempty,oneof=none shared private"`
	HotelName         string `json:"hotel_name" validate:"omitempty,max=200"`
	RoomNumber        string `json:"room_number" validate:"omitempty,max=20"`
	NonPlayers        int32  `json:"non_players" validate:"min=0"`
	PrivatePassengers int32  `json:"private_passengers" validate:"min=0"`
}

type addonLineRequest struct {
	AddonID  string `json:"addon_id" validate:"required"`
	Quantity int32  `json:"quantity" validate:"required,min=1"`
}

// paymentPendingResponse is returned when the booking persisted but the
// payment intent could not be created. The booking is pending and the
// client retries the intent without re-submitting the order.
type paymentPendingResponse struct {
	Error      errorBody `json:"error"`
	BookingID  string    `json:"booking_id"`
	BookingRef string    `json:"booking_ref"`
}

type createBookingResponse struct {
	BookingID      string `json:"booking_id"`
	BookingRef     string `json:"booking_ref"`
	TotalAmount    int64  `json:"total_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	Currency       string `json:"currency"`
	ClientSecret   string `json:"client_secret"`
	PublishableKey string `json:"publishable_key"`
}

// CreateBooking handles POST /api/bookings.
func (h *Handler) CreateBooking(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	activityDate, err := time.Parse("2006-01-02", req.ActivityDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid activity date")
	}

	mode := domain.TransportMode(req.Transport.Type)
	if req.Transport.Type == "" {
		mode = domain.TransportNone
	}

	params := service.CreateBookingParams{
		PackageID:    req.PackageID,
		ActivityDate: activityDate,
		TimeSlot:     req.TimeSlot,
		GuestCount:   req.GuestCount,
		Customer: domain.Customer{
			FirstName:   req.Customer.FirstName,
			LastName:    req.Customer.LastName,
			Email:       req.Customer.Email,
			Phone:       req.Customer.Phone,
			CountryCode: req.Customer.CountryCode,
		},
		Transport: pricing.TransportSelection{
			Mode:              mode,
			HotelName:         req.Transport.HotelName,
			RoomNumber:        req.Transport.RoomNumber,
			NonPlayers:        req.Transport.NonPlayers,
			PrivatePassengers: req.Transport.PrivatePassengers,
		},
		PromoCode: req.PromoCode,
		Requests:  req.SpecialRequests,
	}
	for _, a := range req.Addons {
		params.Addons = append(params.Addons, service.AddonRequest{
			AddonID:  a.AddonID,
			Quantity: a.Quantity,
		})
	}

	result, err := h.bookings.CreateBooking(c.Request().Context(), params)
	if err != nil {
		if result != nil && domain.ErrorCode(err) == domain.EPAYMENT {
			// The booking persisted but the payment intent did not.
			// Hand the client the identifiers it needs to retry via
			// POST /api/bookings/:id/payment-intent.
			return c.JSON(http.StatusPaymentRequired, paymentPendingResponse{
				Error: errorBody{
					Code:    domain.EPAYMENT,
					Message: domain.ErrorMessage(err),
				},
				BookingID:  result.BookingID.String(),
				BookingRef: result.BookingRef,
			})
		}
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, createBookingResponse{
		BookingID:      result.BookingID.String(),
		BookingRef:     result.BookingRef,
		TotalAmount:    result.TotalAmount,
		DiscountAmount: result.Discount,
		Currency:       result.Currency,
		ClientSecret:   result.ClientSecret,
		PublishableKey: h.publishableKey,
	})
}

type bookingResponse struct {
	BookingRef      string              `json:"booking_ref"`
	Status          string              `json:"status"`
	PackageID       string              `json:"package_id"`
	PackageName     string              `json:"package_name"`
	ActivityDate    string              `json:"activity_date"`
	TimeSlot        string              `json:"time_slot"`
	GuestCount      int32               `json:"guest_count"`
	TotalAmount     int64               `json:"total_amount"`
	DiscountAmount  int64               `json:"discount_amount"`
	Currency        string              `json:"currency"`
	SpecialRequests string              `json:"special_requests,omitempty"`
	Customer        customerResponse    `json:"customer"`
	Transport       transportResponse   `json:"transport"`
	Addons          []addonLineResponse `json:"addons,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

type customerResponse struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

type transportResponse struct {
	Type              string `json:"type"`
	HotelName         string `json:"hotel_name,omitempty"`
	RoomNumber        string `json:"room_number,omitempty"`
	NonPlayers        int32  `json:"non_players,omitempty"`
	PrivatePassengers int32  `json:"private_passengers,omitempty"`
	Cost              int64  `json:"cost"`
}

type addonLineResponse struct {
	AddonID   string `json:"addon_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
}

// GetBooking handles GET /api/bookings/:ref. The caller must supply the
// booking's payment intent id as ?payment_intent= proof.
func (h *Handler) GetBooking(c echo.Context) error {
	ref := c.Param("ref")
	proof := c.QueryParam("payment_intent")

	d, err := h.bookings.GetBooking(c.Request().Context(), ref, proof)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, newBookingResponse(d))
}

func newBookingResponse(d *domain.BookingDetail) bookingResponse {
	resp := bookingResponse{
		BookingRef:      d.Booking.Ref,
		Status:          string(d.Booking.Status),
		PackageID:       d.Booking.PackageID,
		PackageName:     d.Booking.PackageName,
		ActivityDate:    d.Booking.ActivityDate.Format("2006-01-02"),
		TimeSlot:        d.Booking.TimeSlot,
		GuestCount:      d.Booking.GuestCount,
		TotalAmount:     d.Booking.TotalAmount,
		DiscountAmount:  d.Booking.Discount,
		Currency:        d.Booking.Currency,
		SpecialRequests: d.Booking.Requests,
		Customer: customerResponse{
			FirstName:   d.Customer.FirstName,
			LastName:    d.Customer.LastName,
			Email:       d.Customer.Email,
			Phone:       d.Customer.Phone,
			CountryCode: d.Customer.CountryCode,
		},
		Transport: transportResponse{
			Type:              string(d.Transport.Mode),
			HotelName:         d.Transport.HotelName,
			RoomNumber:        d.Transport.RoomNumber,
			NonPlayers:        d.Transport.NonPlayers,
			PrivatePassengers: d.Transport.PrivatePassengers,
			Cost:              d.Transport.Cost,
		},
		CreatedAt: d.Booking.CreatedAt,
	}
	for _, a := range d.Addons {
		resp.Addons = append(resp.Addons, addonLineResponse{
			AddonID:   a.AddonID,
			Name:      a.Name,
			UnitPrice: a.UnitPrice,
			Quantity:  a.Quantity,
		})
	}
	return resp
}

type paymentIntentResponse struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	PublishableKey  string `json:"publishable_key"`
}

// RetryPaymentIntent handles POST /api/bookings/:id/payment-intent.
// Safe to call repeatedly: the same intent comes back every time.
func (h *Handler) RetryPaymentIntent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	intent, err := h.bookings.EnsurePaymentIntent(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, paymentIntentResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		PublishableKey:  h.publishableKey,
	})
}
