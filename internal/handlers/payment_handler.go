package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"expo-booking/internal/services"
)

type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type verifyBody struct {
	services.VerifyRequest

	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// VerifyPayment - POST /payments/verify, called by the checkout page with
// the triple the gateway handed to the browser.
func (h *PaymentHandler) VerifyPayment(e *core.RequestEvent) error {
	var body verifyBody
	if err := bindBody(e, &body); err != nil {
		return respondError(e, "VerifyPayment", err)
	}

	req := body.VerifyRequest
	if req.OrderID == "" {
		req.OrderID = body.OrderID
	}
	if req.PaymentID == "" {
		req.PaymentID = body.PaymentID
	}
	if req.Signature == "" {
		req.Signature = body.Signature
	}

	res, err := h.payments.VerifyPayment(e.Request.Context(), req)
	if err != nil {
		return respondError(e, "h.payments.VerifyPayment()", err)
	}
	return e.JSON(http.StatusOK, res)
}
