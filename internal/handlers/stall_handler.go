package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"expo-booking/internal/services"
	"expo-booking/models"
)

type StallHandler struct {
	orders *services.OrderService
}

func NewStallHandler(orders *services.OrderService) *StallHandler {
	return &StallHandler{orders: orders}
}

// ListStalls - GET /stalls, every stall not yet booked.
func (h *StallHandler) ListStalls(e *core.RequestEvent) error {
	stalls, err := h.orders.ListAvailableStalls(e.Request.Context())
	if err != nil {
		return respondError(e, "h.orders.ListAvailableStalls()", err)
	}
	if stalls == nil {
		stalls = []models.Stall{}
	}
	return e.JSON(http.StatusOK, map[string]any{"stalls": stalls})
}
