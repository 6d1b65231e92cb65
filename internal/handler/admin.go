package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type bulkSyncRequest struct {
	// BookingIDs limits the backfill to specific bookings. Empty means
	// every confirmed and completed booking.
	BookingIDs []string `json:"booking_ids" validate:"omitempty,max=500,dive,uuid"`
}

// BulkSync handles POST /api/admin/bookings/sync: backfill confirmed
// bookings into the external booking system.
func (h *Handler) BulkSync(c echo.Context) error {
	var req bulkSyncRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ids := make([]uuid.UUID, 0, len(req.BookingIDs))
	for _, raw := range req.BookingIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id: "+raw)
		}
		ids = append(ids, id)
	}

	report, err := h.bookings.BulkSync(c.Request().Context(), ids)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, report)
}
