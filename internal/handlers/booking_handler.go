package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"expo-booking/internal/services"
	"expo-booking/internal/status"
	"expo-booking/models"
)

type BookingHandler struct {
	bookings *services.BookingService
	cancels  *services.CancelService
}

func NewBookingHandler(bookings *services.BookingService, cancels *services.CancelService) *BookingHandler {
	return &BookingHandler{bookings: bookings, cancels: cancels}
}

// GetBooking - GET /bookings/{id}
func (h *BookingHandler) GetBooking(e *core.RequestEvent) error {
	booking, err := h.bookings.GetBooking(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return respondError(e, "h.bookings.GetBooking()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"booking": booking})
}

// ListBookings - GET /admin/bookings
func (h *BookingHandler) ListBookings(e *core.RequestEvent) error {
	q := e.Request.URL.Query()

	f := models.BookingFilter{
		EventName:  q.Get("event_name"),
		Email:      q.Get("email"),
		TicketType: q.Get("ticket_type"),
		Status:     models.Status(strings.ToUpper(q.Get("status"))),
	}
	if f.Email == "" {
		f.Email = q.Get("user_email_filter")
	}

	var err error
	if f.StartDate, err = parseDateParam("start_date", q.Get("start_date"), false); err != nil {
		return respondError(e, "ListBookings", err)
	}
	if f.EndDate, err = parseDateParam("end_date", q.Get("end_date"), true); err != nil {
		return respondError(e, "ListBookings", err)
	}

	bookings, err := h.bookings.ListBookings(e.Request.Context(), f, actorFrom(e))
	if err != nil {
		return respondError(e, "h.bookings.ListBookings()", err)
	}
	if bookings == nil {
		bookings = []models.BookingDetail{}
	}
	return e.JSON(http.StatusOK, map[string]any{"bookings": bookings})
}

// parseDateParam accepts a date or a full timestamp. A bare end date
// covers the whole day.
func parseDateParam(name, v string, endOfDay bool) (types.DateTime, error) {
	if v == "" {
		return types.DateTime{}, nil
	}
	if d, err := time.Parse(time.DateOnly, v); err == nil {
		if endOfDay {
			d = d.Add(24*time.Hour - time.Millisecond)
		}
		return types.ParseDateTime(d)
	}
	dt, err := types.ParseDateTime(v)
	if err != nil || dt.IsZero() {
		return types.DateTime{}, status.Errorf(status.ErrValidation, "%s must be a date (YYYY-MM-DD) or timestamp", name)
	}
	return dt, nil
}

type cancelBody struct {
	ActorEmail string `json:"actor_email"`
}

// CancelBooking - POST /admin/bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(e *core.RequestEvent) error {
	var body cancelBody
	if err := bindBody(e, &body); err != nil {
		return respondError(e, "CancelBooking", err)
	}

	actor := actorFrom(e)
	if actor.Email == "" {
		actor.Email = body.ActorEmail
	}

	res, err := h.cancels.CancelBooking(e.Request.Context(), e.Request.PathValue("id"), actor)
	if err != nil {
		return respondError(e, "h.cancels.CancelBooking()", err)
	}

	out := map[string]any{
		"success": true,
		"booking": res.Booking,
	}
	if res.RefundID != "" {
		out["refund_id"] = res.RefundID
	}
	if res.RefundError != "" {
		out["refund_error"] = res.RefundError
	}
	return e.JSON(http.StatusOK, out)
}
