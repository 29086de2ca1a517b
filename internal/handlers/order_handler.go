package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"expo-booking/internal/services"
)

type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type bookingOrderBody struct {
	services.BookingOrderRequest

	// buyer_* is accepted as an alias of user_*
	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
	BuyerPhone string `json:"buyer_phone"`
}

// CreateBookingOrder - POST /orders/booking
func (h *OrderHandler) CreateBookingOrder(e *core.RequestEvent) error {
	var body bookingOrderBody
	if err := bindBody(e, &body); err != nil {
		return respondError(e, "CreateBookingOrder", err)
	}

	req := body.BookingOrderRequest
	if req.UserName == "" {
		req.UserName = body.BuyerName
	}
	if req.UserEmail == "" {
		req.UserEmail = body.BuyerEmail
	}
	if req.UserPhone == "" {
		req.UserPhone = body.BuyerPhone
	}

	res, err := h.orders.CreateBookingOrder(e.Request.Context(), req)
	if err != nil {
		return respondError(e, "h.orders.CreateBookingOrder()", err)
	}
	return e.JSON(http.StatusCreated, res)
}

// CreateExhibitorOrder - POST /orders/exhibitor
func (h *OrderHandler) CreateExhibitorOrder(e *core.RequestEvent) error {
	var req services.ExhibitorOrderRequest
	if err := bindBody(e, &req); err != nil {
		return respondError(e, "CreateExhibitorOrder", err)
	}

	res, err := h.orders.CreateExhibitorOrder(e.Request.Context(), req)
	if err != nil {
		return respondError(e, "h.orders.CreateExhibitorOrder()", err)
	}
	return e.JSON(http.StatusOK, res)
}
