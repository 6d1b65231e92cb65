// Package handler exposes the booking API over HTTP. Handlers bind and
// validate input, delegate to the service layer, and translate domain
// error codes to HTTP statuses. No business logic lives here.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ziplinepark/canopy/internal/billing"
	"github.com/ziplinepark/canopy/internal/domain"
	"github.com/ziplinepark/canopy/internal/service"
)

// Handler wires the HTTP routes to the service layer.
type Handler struct {
	bookings   *service.BookingService
	reconciler *service.Reconciler
	billing    billing.Provider
	validate   *validator.Validate
	logger     *slog.Logger

	adminToken     string
	publishableKey string

	webhookHandlers map[string]webhookHandlerFunc
}

// New creates the HTTP handler.
func New(
	bookings *service.BookingService,
	reconciler *service.Reconciler,
	provider billing.Provider,
	logger *slog.Logger,
	adminToken string,
	publishableKey string,
) *Handler {
	h := &Handler{
		bookings:       bookings,
		reconciler:     reconciler,
		billing:        provider,
		validate:       validator.New(),
		logger:         logger,
		adminToken:     adminToken,
		publishableKey: publishableKey,
	}
	h.webhookHandlers = map[string]webhookHandlerFunc{
		billing.EventPaymentSucceeded:  h.handlePaymentIntentSucceeded,
		billing.EventPaymentFailed:     h.handlePaymentIntentFailed,
		billing.EventChargeRefunded:    h.handleChargeRefunded,
		billing.EventCheckoutCompleted: h.handleCheckoutCompleted,
	}
	return h
}

// Register mounts all routes on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/bookings", h.CreateBooking)
	api.GET("/bookings/:ref", h.GetBooking)
	api.POST("/bookings/:id/payment-intent", h.RetryPaymentIntent)

	admin := api.Group("/admin", h.requireAdmin)
	admin.POST("/bookings/sync", h.BulkSync)

	e.POST("/webhooks/stripe", h.StripeWebhook)
}

// Health is the liveness probe.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// requireAdmin guards admin routes with a static bearer token.
func (h *Handler) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.adminToken == "" {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "admin API is not configured")
		}
		if c.Request().Header.Get("Authorization") != "Bearer "+h.adminToken {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid admin token")
		}
		return next(c)
	}
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps a domain error to an HTTP response. Internal details
// are logged, never returned to the caller.
func (h *Handler) respondError(c echo.Context, err error) error {
	code := domain.ErrorCode(err)
	status := statusFromCode(code)

	if status >= 500 {
		h.logger.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
	}

	return c.JSON(status, errorResponse{Error: errorBody{
		Code:    code,
		Message: domain.ErrorMessage(err),
	}})
}

func statusFromCode(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT, domain.EPRECONDITION:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
