package services

import (
	"context"
	"errors"
	"log/slog"

	"expo-booking/internal/services/gateway"
	"expo-booking/internal/status"
	"expo-booking/internal/store"
	"expo-booking/models"
	"expo-booking/monitoring"
)

// Actor is the authenticated caller of an administrative operation.
type Actor struct {
	Email   string
	IsAdmin bool
}

type CancelResult struct {
	Booking     *models.Booking `json:"booking"`
	RefundID    string          `json:"refund_id,omitempty"`
	RefundError string          `json:"refund_error,omitempty"`
}

type CancelService struct {
	store   *store.Store
	gateway PaymentGateway
}

func NewCancelService(s *store.Store, gw PaymentGateway) *CancelService {
	return &CancelService{store: s, gateway: gw}
}

// CancelBooking closes a booking on behalf of an admin. The booking is
// claimed as CANCELLED first, with its tickets going back to stock only if
// they were deducted. A paid booking is then refunded and ends REFUNDED;
// it stays CANCELLED when the refund fails.
func (s *CancelService) CancelBooking(ctx context.Context, bookingID string, actor Actor) (*CancelResult, error) {
	if !actor.IsAdmin {
		return nil, status.Errorf(status.ErrForbidden, "admin access required")
	}

	booking, err := s.store.FindBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.Terminal() {
		return nil, status.Errorf(status.ErrAlreadyTerminal, "booking is already %s", booking.Status)
	}

	err = s.store.RunInTransaction(ctx, func(tx *store.Store) error {
		ok, err := tx.MarkBookingCancelled(ctx, booking.ID, models.StatusCancelled, booking.InventoryApplied, "")
		if err != nil {
			return err
		}
		if !ok {
			current, err := tx.FindBooking(ctx, booking.ID)
			if err != nil {
				return err
			}
			if current.Status.Terminal() {
				return status.Errorf(status.ErrAlreadyTerminal, "booking is already %s", current.Status)
			}
			return status.Errorf(status.ErrPersistence, "booking %s changed while cancelling, retry", booking.ID)
		}
		if booking.InventoryApplied {
			return tx.IncrementTicket(ctx, booking.TicketID, booking.Quantity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CancelResult{}
	final := models.StatusCancelled

	if booking.Status == models.StatusPaid && booking.GatewayPaymentID != "" {
		// the booking is already claimed; finish the refund even if the caller goes away
		ctx := context.WithoutCancel(ctx)
		refund, err := s.gateway.Refund(ctx, booking.GatewayPaymentID, gateway.RefundRequest{
			Speed: "normal",
			Notes: map[string]string{
				"reason":     "Admin cancelled booking",
				"booking_id": booking.ID,
			},
		})
		if err != nil {
			slog.Error("s.gateway.Refund()", "booking_id", booking.ID, "payment_id", booking.GatewayPaymentID, "error", err)
			result.RefundError = refundMessage(err)
		} else {
			final = models.StatusRefunded
			result.RefundID = refund.ID
			ok, err := s.store.RecordBookingRefund(ctx, booking.ID, booking.GatewayPaymentID, refund.ID)
			if err != nil || !ok {
				slog.Error("refund issued but not recorded", "booking_id", booking.ID, "refund_id", refund.ID, "error", err)
			}
		}
	}

	slog.Info("booking cancelled", "booking_id", booking.ID, "status", final, "actor", actor.Email, "refund_id", result.RefundID)
	monitoring.TrackCancellation(string(final))

	result.Booking, err = s.store.FindBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func refundMessage(err error) string {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Description != "" {
		return "refund failed: " + apiErr.Description
	}
	return "refund failed: " + status.Message(err)
}
